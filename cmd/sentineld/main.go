// cmd/sentineld/main.go
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pulsar-sentinel/core/internal/anchor"
	"github.com/pulsar-sentinel/core/internal/archive"
	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/internal/controlplane"
	"github.com/pulsar-sentinel/core/internal/engine"
	"github.com/pulsar-sentinel/core/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "sentinel.db"))
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	passphrase := os.Getenv("PULSAR_KEK_PASSPHRASE")
	if passphrase == "" {
		log.Fatal("PULSAR_KEK_PASSPHRASE environment variable is required")
	}
	kekSalt, err := loadOrCreateKEKSalt(cfg.DataDir)
	if err != nil {
		log.Fatalf("kek salt: %v", err)
	}

	primary, secondary := buildAnchorSinks(cfg)

	archiveDirs := archiveBackupDirs(cfg.DataDir)
	archiveStore := archive.NewStore(archiveDirs, archive.DefaultDataShards, archive.DefaultParityShards)

	eng := engine.New(cfg, db, passphrase, kekSalt, primary, secondary, archiveStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.StartWorkers(ctx)

	mux := controlplane.New(eng)

	port := os.Getenv("PULSAR_INTERNAL_PORT")
	if port == "" {
		port = "9090"
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
		os.Exit(0)
	}()

	log.Printf("sentineld internal control plane listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

// loadOrCreateKEKSalt reads the installation's persistent KEK salt from disk,
// generating and persisting a fresh one on first run.
func loadOrCreateKEKSalt(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, "kek.salt")
	data, err := os.ReadFile(path)
	if err == nil && len(data) == 16 {
		return data, nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("persist salt: %w", err)
	}
	return salt, nil
}

// buildAnchorSinks constructs the primary and fallback Anchor Sinks per
// ANCHOR_NETWORK. "none" uses an in-memory sink for both, useful for local
// development and integration tests.
func buildAnchorSinks(cfg *config.Config) (primary, secondary anchor.AnchorSink) {
	switch cfg.AnchorNetwork {
	case "mainnet", "testnet":
		network := anchor.NetworkTestnet
		if cfg.AnchorNetwork == "mainnet" {
			network = anchor.NetworkMainnet
		}
		rpcURL := os.Getenv("ANCHOR_RPC_URL")
		wsURL := os.Getenv("ANCHOR_WS_URL")
		fromAddr := os.Getenv("ANCHOR_FROM_ADDRESS")
		primary = anchor.NewEVMSink(network, rpcURL, wsURL, fromAddr)
		secondary = anchor.NewNoopSink()
	default:
		primary = anchor.NewNoopSink()
		secondary = anchor.NewNoopSink()
	}
	return primary, secondary
}

// archiveBackupDirs returns the erasure-coded shard destinations: three
// fixed subdirectories under dataDir/archive on local disk. No environment
// variable overrides them.
func archiveBackupDirs(dataDir string) []string {
	dirs := []string{
		filepath.Join(dataDir, "archive", "0"),
		filepath.Join(dataDir, "archive", "1"),
		filepath.Join(dataDir, "archive", "2"),
	}
	for _, d := range dirs {
		os.MkdirAll(d, 0o700)
	}
	return dirs
}

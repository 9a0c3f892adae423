// cmd/sentinelctl/main.go
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pulsar-sentinel/core/internal/anchor"
	"github.com/pulsar-sentinel/core/internal/asr"
	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/internal/engine"
	"github.com/pulsar-sentinel/core/internal/rules"
	"github.com/pulsar-sentinel/core/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		cmdKeygen(os.Args[2:])
	case "encrypt":
		cmdEncrypt(os.Args[2:])
	case "decrypt":
		cmdDecrypt(os.Args[2:])
	case "audit":
		cmdAudit(os.Args[2:])
	case "score":
		cmdScore(os.Args[2:])
	case "admin":
		cmdAdmin(os.Args[2:])
	case "heir-transfer":
		cmdHeirTransfer(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: sentinelctl <keygen|encrypt|decrypt|audit|score|admin|heir-transfer> [args]")
	fmt.Println("  keygen --agent=<agent-id>")
	fmt.Println("  encrypt --agent=<agent-id> <key-id> < plaintext > envelope")
	fmt.Println("  decrypt --agent=<agent-id> <key-id> < envelope > plaintext")
	fmt.Println("  audit <agent-id> [--since=<duration>] [--min-level=1..5]")
	fmt.Println("  score <agent-id>")
	fmt.Println("  admin register-operator <operator-id> <ed25519-pub-hex> <label>")
	fmt.Println("  admin revoke-operator <operator-id>")
	fmt.Println("  heir-transfer <agent-id> <heir-signature-hex>")
}

// openEngine loads config and every collaborator sentinelctl needs, without
// starting background workers or a network-facing anchor sink: operator CLI
// invocations are one-shot.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "sentinel.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	passphrase := os.Getenv("PULSAR_KEK_PASSPHRASE")
	if passphrase == "" {
		db.Close()
		return nil, nil, fmt.Errorf("PULSAR_KEK_PASSPHRASE environment variable is required")
	}
	kekSalt, err := loadOrCreateKEKSalt(cfg.DataDir)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	noop := anchor.NewNoopSink()
	eng := engine.New(cfg, db, passphrase, kekSalt, noop, noop, nil)
	return eng, func() { db.Close() }, nil
}

// ensureCLIAgent registers agentID as an Admin the first time sentinelctl
// sees it. Anyone who can invoke sentinelctl already holds
// PULSAR_KEK_PASSPHRASE and direct filesystem access to the keystore, so
// the CLI's trust boundary is the same as an interactive shell on the host;
// the capability chain still records and rate-limits what that operator
// does through it.
func ensureCLIAgent(eng *engine.Engine, agentID string) error {
	if _, err := eng.DB.GetAgent(agentID); err == nil {
		return nil
	}
	return eng.DB.UpsertAgent(&storage.AgentRecord{
		AgentID: agentID,
		Role:    string(rules.RoleAdmin),
		Tier:    string(rules.TierAutonomousGuild),
	})
}

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

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// defaultCLIAgent is the identity attributed to operator CLI invocations
// that omit --agent, e.g. scripted keygen against a fresh install with no
// registered agents yet.
const defaultCLIAgent = "system"

// parseAgentFlag pulls an --agent=<id> flag out of args, in whatever
// position it appears, and returns the remaining positional arguments.
func parseAgentFlag(args []string) (agentID string, rest []string) {
	agentID = defaultCLIAgent
	for _, a := range args {
		const prefix = "--agent="
		if len(a) > len(prefix) && a[:len(prefix)] == prefix {
			agentID = a[len(prefix):]
			continue
		}
		rest = append(rest, a)
	}
	return agentID, rest
}

func cmdKeygen(args []string) {
	agentID, _ := parseAgentFlag(args)
	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	if err := ensureCLIAgent(eng, agentID); err != nil {
		fatalf("register cli agent: %v", err)
	}
	kp, err := eng.GenerateKeypair(agentID)
	if err != nil {
		fatalf("generate keypair: %v", err)
	}
	fmt.Printf("key_id:     %s\n", kp.KeyID)
	fmt.Printf("level:      %d\n", kp.Level)
	fmt.Printf("public_key: %s\n", hex.EncodeToString(kp.PublicKey))
	fmt.Printf("created_at: %s\n", kp.CreatedAt.Format(time.RFC3339))
}

func cmdEncrypt(args []string) {
	agentID, args := parseAgentFlag(args)
	if len(args) < 1 {
		fatalf("usage: sentinelctl encrypt --agent=<agent-id> <key-id> < plaintext")
	}
	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	plaintext, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatalf("read stdin: %v", err)
	}

	if err := ensureCLIAgent(eng, agentID); err != nil {
		fatalf("register cli agent: %v", err)
	}
	envelope, err := eng.Encrypt(agentID, args[0], plaintext)
	if err != nil {
		fatalf("encrypt: %v", err)
	}
	os.Stdout.Write(envelope)
}

func cmdDecrypt(args []string) {
	agentID, args := parseAgentFlag(args)
	if len(args) < 1 {
		fatalf("usage: sentinelctl decrypt --agent=<agent-id> <key-id> < envelope")
	}
	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	envelope, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatalf("read stdin: %v", err)
	}

	if err := ensureCLIAgent(eng, agentID); err != nil {
		fatalf("register cli agent: %v", err)
	}
	plaintext, err := eng.Decrypt(agentID, args[0], envelope)
	if err != nil {
		fatalf("decrypt: %v", err)
	}
	os.Stdout.Write(plaintext)
}

func cmdAudit(args []string) {
	if len(args) < 1 {
		fatalf("usage: sentinelctl audit <agent-id> [--since=<duration>] [--min-level=1..5]")
	}
	agentID := args[0]
	since := 24 * time.Hour
	minLevel := asr.ThreatLevelInfo

	for _, a := range args[1:] {
		switch {
		case len(a) > len("--since=") && a[:len("--since=")] == "--since=":
			d, err := time.ParseDuration(a[len("--since="):])
			if err != nil {
				fatalf("invalid --since: %v", err)
			}
			since = d
		case len(a) > len("--min-level=") && a[:len("--min-level=")] == "--min-level=":
			n, err := strconv.Atoi(a[len("--min-level="):])
			if err != nil {
				fatalf("invalid --min-level: %v", err)
			}
			minLevel = asr.ThreatLevel(n)
		}
	}

	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	now := time.Now()
	rows, err := eng.Pipeline.RecordsFor(agentID, now.Add(-since), now, minLevel)
	if err != nil {
		fatalf("audit: %v", err)
	}

	for _, r := range rows {
		fmt.Printf("%s  %-20s  level=%d  pqc=%-8s  batch=%s\n",
			time.UnixMilli(r.TimestampMs).Format(time.RFC3339), r.Action, r.ThreatLevel, r.PQCStatus, r.BatchID)
	}
	fmt.Printf("%d record(s)\n", len(rows))
}

func cmdScore(args []string) {
	if len(args) < 1 {
		fatalf("usage: sentinelctl score <agent-id>")
	}
	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	pts, tier, err := eng.Threat.Score(args[0])
	if err != nil {
		fatalf("score: %v", err)
	}
	fmt.Printf("agent:  %s\n", args[0])
	fmt.Printf("pts:    %.2f\n", pts)
	fmt.Printf("tier:   %s\n", tier)
}

func cmdAdmin(args []string) {
	if len(args) < 1 {
		fatalf("usage: sentinelctl admin <register-operator|revoke-operator> ...")
	}
	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	switch args[0] {
	case "register-operator":
		if len(args) < 4 {
			fatalf("usage: sentinelctl admin register-operator <operator-id> <ed25519-pub-hex> <label>")
		}
		pub, err := hex.DecodeString(args[2])
		if err != nil || len(pub) != 32 {
			fatalf("invalid ed25519 public key hex (need 64 hex chars)")
		}
		if err := eng.Admin.RegisterOperator(args[1], ed25519.PublicKey(pub), args[3]); err != nil {
			fatalf("register operator: %v", err)
		}
		fmt.Println("operator registered")
	case "revoke-operator":
		if len(args) < 2 {
			fatalf("usage: sentinelctl admin revoke-operator <operator-id>")
		}
		if err := eng.Admin.RevokeOperator(args[1]); err != nil {
			fatalf("revoke operator: %v", err)
		}
		fmt.Println("operator revoked")
	default:
		fatalf("unknown admin subcommand: %s", args[0])
	}
}

func cmdHeirTransfer(args []string) {
	if len(args) < 2 {
		fatalf("usage: sentinelctl heir-transfer <agent-id> <heir-signature-hex>")
	}
	sig, err := hex.DecodeString(args[1])
	if err != nil {
		fatalf("invalid heir signature hex: %v", err)
	}

	eng, closeFn, err := openEngine()
	if err != nil {
		fatalf("%v", err)
	}
	defer closeFn()

	newAgentID, err := eng.TransferToHeir(args[0], sig)
	if err != nil {
		fatalf("heir transfer: %v", err)
	}
	fmt.Printf("new_agent_id: %s\n", newAgentID)
}


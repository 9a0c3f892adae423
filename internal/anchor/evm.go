package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Network selects which chain endpoint an EVMSink talks to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// EVMSink talks to an EVM-compatible node over JSON-RPC. Submit passes the
// root hash string unchanged as the single eth_sendRawTransaction parameter;
// it does not build, encode or sign a transaction around it. Confirmation
// waits use a gorilla/websocket subscription to newHeads rather than polling.
type EVMSink struct {
	network     Network
	rpcURL      string
	wsURL       string
	fromAddress string
	httpClient  *http.Client
}

// NewEVMSink builds a sink targeting a given JSON-RPC HTTP endpoint and a
// companion websocket endpoint used for eth_subscribe("newHeads").
func NewEVMSink(network Network, rpcURL, wsURL, fromAddress string) *EVMSink {
	return &EVMSink{
		network:     network,
		rpcURL:      rpcURL,
		wsURL:       wsURL,
		fromAddress: fromAddress,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *EVMSink) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("anchor: marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anchor: build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("%w: decode rpc response: %v", ErrNetworkUnavailable, err)
	}
	if rpcResp.Error != nil {
		return nil, classifyRPCError(rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// classifyRPCError maps a JSON-RPC error onto the sink's failure taxonomy.
// Unrecognized errors are treated as permanent to avoid retrying forever
// against a chain that will never accept the transaction.
func classifyRPCError(code int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, message)
	case strings.Contains(lower, "timeout"):
		return fmt.Errorf("%w: %s", ErrTransactionTimeout, message)
	default:
		return fmt.Errorf("%w: rpc error %d: %s", ErrPermanentRejection, code, message)
	}
}

// Submit sends a pre-signed raw transaction (rootHash carries the signed
// payload) via eth_sendRawTransaction and returns its hash.
func (s *EVMSink) Submit(ctx context.Context, rootHash, batchID string) (Receipt, error) {
	result, err := s.call(ctx, "eth_sendRawTransaction", []interface{}{rootHash})
	if err != nil {
		return Receipt{}, err
	}
	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return Receipt{}, fmt.Errorf("%w: decode tx hash: %v", ErrPermanentRejection, err)
	}
	return Receipt{TxHash: txHash}, nil
}

type txReceipt struct {
	BlockNumber string `json:"blockNumber"`
	Status      string `json:"status"`
}

func (s *EVMSink) Confirmations(ctx context.Context, receipt Receipt) (int, error) {
	result, err := s.call(ctx, "eth_getTransactionReceipt", []interface{}{receipt.TxHash})
	if err != nil {
		return 0, err
	}
	if string(result) == "null" {
		return 0, nil
	}
	var r txReceipt
	if err := json.Unmarshal(result, &r); err != nil {
		return 0, fmt.Errorf("%w: decode receipt: %v", ErrNetworkUnavailable, err)
	}
	if r.Status != "0x1" {
		return 0, fmt.Errorf("%w: transaction reverted", ErrPermanentRejection)
	}

	txBlock, err := strconv.ParseInt(strings.TrimPrefix(r.BlockNumber, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse block number: %v", ErrNetworkUnavailable, err)
	}

	head, err := s.latestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	confirmations := int(head - txBlock + 1)
	if confirmations < 0 {
		confirmations = 0
	}
	return confirmations, nil
}

func (s *EVMSink) latestBlockNumber(ctx context.Context) (int64, error) {
	result, err := s.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("%w: decode block number: %v", ErrNetworkUnavailable, err)
	}
	return strconv.ParseInt(strings.TrimPrefix(hexNum, "0x"), 16, 64)
}

type newHeadsNotification struct {
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// AwaitConfirmation opens a websocket subscription to newHeads and re-checks
// confirmation depth on every new head, avoiding a polling loop. It falls
// back to returning TimedOut without error if the deadline elapses.
func (s *EVMSink) AwaitConfirmation(ctx context.Context, receipt Receipt, min int, timeout time.Duration) (ConfirmState, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(deadlineCtx, s.wsURL, nil)
	if err != nil {
		return TimedOut, fmt.Errorf("%w: dial ws: %v", ErrNetworkUnavailable, err)
	}
	defer conn.Close()

	subReq := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []interface{}{"newHeads"}}
	if err := conn.WriteJSON(subReq); err != nil {
		return TimedOut, fmt.Errorf("%w: subscribe: %v", ErrNetworkUnavailable, err)
	}

	go func() {
		<-deadlineCtx.Done()
		conn.Close()
	}()

	for {
		n, err := s.Confirmations(deadlineCtx, receipt)
		if err == nil && n >= min {
			return Confirmed, nil
		}

		var notification newHeadsNotification
		if err := conn.ReadJSON(&notification); err != nil {
			if deadlineCtx.Err() != nil {
				return TimedOut, nil
			}
			return TimedOut, fmt.Errorf("%w: read ws: %v", ErrNetworkUnavailable, err)
		}
	}
}

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/jointsim/internal/rpc"
)

var (
	fakeUnlocked = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	fakeContract = common.HexToAddress("0x5F516b3c4f0B4a495c6C455Fe92af68410a7E7EF")

	// anvil/hardhat dev keys
	devKeys = []string{
		"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	}
)

// fakeNode is a JSON-RPC endpoint that executes JointAccountDApp calls against a Memory ledger.
type fakeNode struct {
	abi    abi.ABI
	ledger *Memory

	mu           sync.Mutex
	receipts     map[common.Hash]uint64
	nonce        uint64
	sent         int
	eagerRevert  bool // report failed eth_sendTransaction calls as RPC errors, like ganache
	withholdSend bool // never produce receipts
	rawSent      []*types.Transaction
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{
		abi:      DefaultArtifact().ABI,
		ledger:   NewMemory(),
		receipts: make(map[common.Hash]uint64),
	}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int               `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, rpcErr := n.handle(req.Method, req.Params)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) handle(method string, params []json.RawMessage) (any, *rpc.JSONRPCError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch method {
	case "eth_chainId":
		return "0x539", nil
	case "eth_gasPrice":
		return "0x3b9aca00", nil
	case "eth_accounts":
		return []common.Address{fakeUnlocked}, nil
	case "eth_getTransactionCount":
		return hexutil.EncodeUint64(n.nonce), nil
	case "eth_call":
		var msg struct {
			Data hexutil.Bytes `json:"data"`
		}
		_ = json.Unmarshal(params[0], &msg)
		out, err := n.view(msg.Data)
		if err != nil {
			return nil, &rpc.JSONRPCError{Code: -32000, Message: err.Error()}
		}
		return hexutil.Bytes(out), nil
	case "eth_sendTransaction":
		var msg struct {
			Data hexutil.Bytes `json:"data"`
		}
		_ = json.Unmarshal(params[0], &msg)
		n.sent++
		hash := common.BigToHash(big.NewInt(int64(n.sent)))
		err := n.apply(msg.Data)
		if err != nil && n.eagerRevert {
			return nil, &rpc.JSONRPCError{Code: -32000, Message: "VM Exception while processing transaction: revert"}
		}
		n.record(hash, err)
		return hash, nil
	case "eth_sendRawTransaction":
		var rawHex string
		_ = json.Unmarshal(params[0], &rawHex)
		raw, _ := hexutil.Decode(rawHex)
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, &rpc.JSONRPCError{Code: -32602, Message: err.Error()}
		}
		if tx.Nonce() != n.nonce {
			return nil, &rpc.JSONRPCError{Code: -32000, Message: fmt.Sprintf("nonce too low: have %d want %d", tx.Nonce(), n.nonce)}
		}
		n.nonce++
		n.sent++
		n.rawSent = append(n.rawSent, tx)
		n.record(tx.Hash(), n.apply(tx.Data()))
		return tx.Hash(), nil
	case "eth_getTransactionReceipt":
		var hashHex string
		_ = json.Unmarshal(params[0], &hashHex)
		status, ok := n.receipts[common.HexToHash(hashHex)]
		if !ok {
			return nil, nil
		}
		return map[string]string{
			"status":      hexutil.EncodeUint64(status),
			"gasUsed":     "0x5208",
			"blockNumber": hexutil.EncodeUint64(uint64(n.sent)),
		}, nil
	}
	return nil, &rpc.JSONRPCError{Code: -32601, Message: "method not found: " + method}
}

func (n *fakeNode) record(hash common.Hash, err error) {
	if n.withholdSend {
		return
	}
	if err != nil {
		n.receipts[hash] = 0
		return
	}
	n.receipts[hash] = 1
}

func (n *fakeNode) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("short calldata")
	}
	m, err := n.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

func (n *fakeNode) view(data []byte) ([]byte, error) {
	m, args, err := n.decode(data)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()

	switch m.Name {
	case MethodUsers:
		id := args[0].(*big.Int).Uint64()
		p, _ := n.ledger.LookupParticipant(ctx, id)
		recID := big.NewInt(0)
		if p.Exists {
			recID = new(big.Int).SetUint64(id)
		}
		return m.Outputs.Pack(recID, p.Name, p.Exists)
	case MethodJointAccounts:
		rel, _ := n.ledger.LookupRelationship(ctx, args[0].(*big.Int).Uint64(), args[1].(*big.Int).Uint64())
		return m.Outputs.Pack(new(big.Int).SetUint64(rel.Balance), rel.Exists)
	}
	return nil, fmt.Errorf("%s is not a view", m.Name)
}

func (n *fakeNode) apply(data []byte) error {
	m, args, err := n.decode(data)
	if err != nil {
		return err
	}
	ctx := context.Background()
	u := func(i int) uint64 { return args[i].(*big.Int).Uint64() }

	switch m.Name {
	case MethodRegisterUser:
		return n.ledger.RegisterParticipant(ctx, u(0), args[1].(string))
	case MethodCreateAcc:
		return n.ledger.CreateRelationship(ctx, u(0), u(1), u(2))
	case MethodSendAmount:
		return n.ledger.TransferUnit(ctx, u(0), u(1), u(2))
	}
	return fmt.Errorf("%s is not a transaction", m.Name)
}

func testRPCClient(url string) *rpc.HTTPClient {
	cfg := rpc.DefaultClientConfig(url)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	return rpc.NewHTTPClient(cfg)
}

func testWaiter(client rpc.Client) *ReceiptWaiter {
	w := NewReceiptWaiter(client, 200*time.Millisecond, true)
	w.initialBackoff = time.Millisecond
	w.maxBackoff = 5 * time.Millisecond
	return w
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

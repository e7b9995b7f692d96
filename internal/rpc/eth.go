package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionReceipt is the subset of an Ethereum receipt the ledger reads.
type TransactionReceipt struct {
	Status            uint64 `json:"status"` // 1 = success, 0 = failure
	GasUsed           uint64 `json:"gasUsed"`
	ContractAddress   string `json:"contractAddress"`
	BlockNumber       uint64 `json:"blockNumber"`
	EffectiveGasPrice uint64 `json:"effectiveGasPrice"`
}

// TransactionArgs are the eth_sendTransaction arguments.
type TransactionArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      hexutil.Uint64  `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// callInto makes a call and unmarshals its result into out.
func (c *HTTPClient) callInto(ctx context.Context, out any, method string, params ...interface{}) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *HTTPClient) quantity(ctx context.Context, method string, params ...interface{}) (uint64, error) {
	var v hexutil.Uint64
	if err := c.callInto(ctx, &v, method, params...); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// ChainID returns the chain id reported by eth_chainId.
func (c *HTTPClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.callInto(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

func (c *HTTPClient) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.callInto(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *HTTPClient) EthCall(ctx context.Context, from *common.Address, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	if from != nil {
		msg["from"] = from.Hex()
	}
	var out hexutil.Bytes
	if err := c.callInto(ctx, &out, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) SendRawTransaction(ctx context.Context, txRLP []byte) error {
	_, err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(txRLP)})
	return err
}

func (c *HTTPClient) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	var hash common.Hash
	if err := c.callInto(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (c *HTTPClient) GetNonce(ctx context.Context, address string) (uint64, error) {
	return c.quantity(ctx, "eth_getTransactionCount", address, "pending")
}

func (c *HTTPClient) GetCode(ctx context.Context, address string) (string, error) {
	var code string
	if err := c.callInto(ctx, &code, "eth_getCode", address, "latest"); err != nil {
		return "", err
	}
	return code, nil
}

func (c *HTTPClient) GetGasPrice(ctx context.Context) (uint64, error) {
	return c.quantity(ctx, "eth_gasPrice")
}

func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	return parseReceipt(result)
}

// parseReceipt decodes the hex quantities of a receipt. Fields a node omits
// (effectiveGasPrice on older ganache) decode as zero.
func parseReceipt(data json.RawMessage) (*TransactionReceipt, error) {
	var raw struct {
		Status            *hexutil.Uint64 `json:"status"`
		GasUsed           *hexutil.Uint64 `json:"gasUsed"`
		ContractAddress   *common.Address `json:"contractAddress"`
		BlockNumber       *hexutil.Uint64 `json:"blockNumber"`
		EffectiveGasPrice *hexutil.Uint64 `json:"effectiveGasPrice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}

	r := &TransactionReceipt{
		Status:            deref(raw.Status),
		GasUsed:           deref(raw.GasUsed),
		BlockNumber:       deref(raw.BlockNumber),
		EffectiveGasPrice: deref(raw.EffectiveGasPrice),
	}
	if raw.ContractAddress != nil {
		r.ContractAddress = raw.ContractAddress.Hex()
	}
	return r, nil
}

func deref(v *hexutil.Uint64) uint64 {
	if v == nil {
		return 0
	}
	return uint64(*v)
}

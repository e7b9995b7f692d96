package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/jointsim/internal/rpc"
)

// DefaultGasLimit is the gas limit for ledger method calls.
const DefaultGasLimit = 300_000

// CallObserver receives the latency and outcome of every contract call.
type CallObserver interface {
	ObserveLedgerCall(method string, d time.Duration, err error)
}

// CallObservers fans a call out to several observers.
type CallObservers []CallObserver

// ObserveLedgerCall implements CallObserver.
func (o CallObservers) ObserveLedgerCall(method string, d time.Duration, err error) {
	for _, obs := range o {
		obs.ObserveLedgerCall(method, d, err)
	}
}

// ContractConfig configures a Contract.
type ContractConfig struct {
	Address   common.Address
	Artifact  *Artifact
	Client    rpc.Client
	Submitter Submitter
	Waiter    *ReceiptWaiter
	GasLimit  uint64
	Observer  CallObserver
	Logger    *slog.Logger
}

// Contract is a Ledger backed by a deployed JointAccountDApp contract.
type Contract struct {
	address   common.Address
	abi       abi.ABI
	client    rpc.Client
	submitter Submitter
	waiter    *ReceiptWaiter
	gasLimit  uint64
	observer  CallObserver
	logger    *slog.Logger
}

var _ Ledger = (*Contract)(nil)

// NewContract creates a contract-backed ledger.
func NewContract(cfg ContractConfig) (*Contract, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	art := cfg.Artifact
	if art == nil {
		art = DefaultArtifact()
	}
	waiter := cfg.Waiter
	if waiter == nil {
		waiter = NewReceiptWaiter(cfg.Client, 0, false)
	}
	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Contract{
		address:   cfg.Address,
		abi:       art.ABI,
		client:    cfg.Client,
		submitter: cfg.Submitter,
		waiter:    waiter,
		gasLimit:  gasLimit,
		observer:  cfg.Observer,
		logger:    logger,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// LookupParticipant implements Ledger.
func (c *Contract) LookupParticipant(ctx context.Context, id uint64) (Participant, error) {
	values, err := c.call(ctx, MethodUsers, u256(id))
	if err != nil {
		return Participant{}, err
	}

	outputs := c.abi.Methods[MethodUsers].Outputs
	p := Participant{ID: id}
	if i := indexOfType(outputs, abi.StringTy); i >= 0 {
		p.Name, _ = values[i].(string)
	}
	if i := existsIndex(outputs); i >= 0 {
		p.Exists, _ = values[i].(bool)
	} else if i := indexOfType(outputs, abi.UintTy); i >= 0 {
		// No flag: an unset record has a zero id.
		v, _ := values[i].(*big.Int)
		p.Exists = v != nil && v.Sign() > 0
	}
	return p, nil
}

// RegisterParticipant implements Ledger.
func (c *Contract) RegisterParticipant(ctx context.Context, id uint64, name string) error {
	return c.transact(ctx, MethodRegisterUser, u256(id), name)
}

// LookupRelationship implements Ledger.
func (c *Contract) LookupRelationship(ctx context.Context, a, b uint64) (Relationship, error) {
	values, err := c.call(ctx, MethodJointAccounts, u256(a), u256(b))
	if err != nil {
		return Relationship{}, err
	}

	outputs := c.abi.Methods[MethodJointAccounts].Outputs
	if len(outputs) == 0 || outputs[0].Type.T != abi.UintTy {
		return Relationship{}, fmt.Errorf("%s: first output must be the balance", MethodJointAccounts)
	}
	bal, ok := values[0].(*big.Int)
	if !ok || bal.Sign() < 0 || !bal.IsUint64() {
		return Relationship{}, fmt.Errorf("%s(%d,%d): balance %v out of range", MethodJointAccounts, a, b, values[0])
	}

	rel := Relationship{A: a, B: b, Balance: bal.Uint64()}
	if i := existsIndex(outputs); i >= 0 {
		rel.Exists, _ = values[i].(bool)
	} else {
		rel.Exists = rel.Balance > 0
	}
	return rel, nil
}

// CreateRelationship implements Ledger.
func (c *Contract) CreateRelationship(ctx context.Context, a, b, balance uint64) error {
	return c.transact(ctx, MethodCreateAcc, u256(a), u256(b), u256(balance))
}

// TransferUnit implements Ledger.
func (c *Contract) TransferUnit(ctx context.Context, from, to, amount uint64) error {
	return c.transact(ctx, MethodSendAmount, u256(from), u256(to), u256(amount))
}

// call runs a read-only method with eth_call and unpacks its outputs.
func (c *Contract) call(ctx context.Context, method string, args ...interface{}) (values []interface{}, err error) {
	start := time.Now()
	defer func() { c.observe(method, start, err) }()

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	from := c.submitter.From()
	out, err := c.client.EthCall(ctx, &from, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result, is the contract deployed at %s?", method, c.address.Hex())
	}

	values, err = c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// transact submits a state-changing method and blocks until its receipt is available.
func (c *Contract) transact(ctx context.Context, method string, args ...interface{}) (err error) {
	start := time.Now()
	defer func() { c.observe(method, start, err) }()

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	hash, err := c.submitter.Submit(ctx, &c.address, data, c.gasLimit)
	if err != nil {
		if rpc.IsRevert(err) {
			return fmt.Errorf("%s: %w: %w", method, ErrReverted, err)
		}
		return fmt.Errorf("submit %s: %w", method, err)
	}

	receipt, err := c.waiter.Wait(ctx, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("%s %s: %w", method, hash.Hex(), ErrReverted)
	}

	c.logger.Debug("ledger transaction confirmed",
		slog.String("method", method),
		slog.String("tx", hash.Hex()),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return nil
}

func (c *Contract) observe(method string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveLedgerCall(method, time.Since(start), err)
	}
}

func u256(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func indexOfType(args abi.Arguments, t byte) int {
	for i, arg := range args {
		if arg.Type.T == t {
			return i
		}
	}
	return -1
}

// existsIndex finds the existence flag: a bool output named "exists", else the last bool output.
func existsIndex(args abi.Arguments) int {
	last := -1
	for i, arg := range args {
		if arg.Type.T != abi.BoolTy {
			continue
		}
		if strings.EqualFold(arg.Name, "exists") {
			return i
		}
		last = i
	}
	return last
}

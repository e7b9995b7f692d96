package ledger

import (
	"math/big"

	"github.com/gateway-fm/jointsim/internal/rpc"
)

// rpcStub satisfies rpc.Client; tests embed it and override what they need.
type rpcStub struct {
	rpc.Client
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func big1337() *big.Int { return big.NewInt(1337) }

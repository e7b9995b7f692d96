// Package execnode provides development node profile definitions and registry.
// This allows the simulator to adapt to different local chains
// (ganache, anvil, hardhat, geth --dev) without scattered conditionals.
package execnode

// NodeProfile defines what a ledger node supports.
// This enables capability-based conditionals instead of string-matching node names.
type NodeProfile struct {
	// Name is the canonical identifier for this node (e.g., "ganache", "anvil")
	Name string

	// DefaultRPCURL is used when no RPC URL is configured.
	DefaultRPCURL string

	// RequiresLegacyTx indicates the node only accepts pre-EIP-1559 transactions.
	RequiresLegacyTx bool

	// HasUnlockedAccounts indicates eth_accounts returns accounts the node signs for,
	// so transactions can be submitted with eth_sendTransaction.
	HasUnlockedAccounts bool

	// InstantMining indicates each transaction is mined in its own block on arrival.
	// Receipts are then polled with a short interval.
	InstantMining bool
}

// String returns the canonical name of the node profile.
func (p *NodeProfile) String() string {
	if p == nil {
		return "unknown"
	}
	return p.Name
}

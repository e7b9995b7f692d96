package execnode

import (
	"sort"
	"sync"
)

// Registry holds registered node profiles.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*NodeProfile
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*NodeProfile),
	}
}

// Register adds or updates a node profile.
func (r *Registry) Register(p *NodeProfile) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Name] = p
}

// Get retrieves a profile by name. Returns nil if not found.
func (r *Registry) Get(name string) *NodeProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Names returns all registered profile names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry pre-populated with built-in node profiles.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GanacheProfile())
	r.Register(AnvilProfile())
	r.Register(HardhatProfile())
	r.Register(GethDevProfile())
	return r
}

// GanacheProfile returns the profile for Ganache (GUI default port 7545).
func GanacheProfile() *NodeProfile {
	return &NodeProfile{
		Name:                "ganache",
		DefaultRPCURL:       "http://127.0.0.1:7545",
		RequiresLegacyTx:    true,
		HasUnlockedAccounts: true,
		InstantMining:       true,
	}
}

// AnvilProfile returns the profile for Foundry's anvil.
func AnvilProfile() *NodeProfile {
	return &NodeProfile{
		Name:                "anvil",
		DefaultRPCURL:       "http://127.0.0.1:8545",
		RequiresLegacyTx:    false,
		HasUnlockedAccounts: true,
		InstantMining:       true,
	}
}

// HardhatProfile returns the profile for the Hardhat network node.
func HardhatProfile() *NodeProfile {
	p := AnvilProfile()
	p.Name = "hardhat"
	return p
}

// GethDevProfile returns the profile for geth --dev.
// The developer account is unlocked but blocks are produced on a period.
func GethDevProfile() *NodeProfile {
	return &NodeProfile{
		Name:                "geth-dev",
		DefaultRPCURL:       "http://127.0.0.1:8545",
		RequiresLegacyTx:    false,
		HasUnlockedAccounts: true,
		InstantMining:       false,
	}
}

package execnode

import (
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name     string
		expected *NodeProfile
	}{
		{"ganache", GanacheProfile()},
		{"anvil", AnvilProfile()},
		{"hardhat", HardhatProfile()},
		{"geth-dev", GethDevProfile()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Get(tt.name)
			if p == nil {
				t.Fatalf("expected %s to be registered, got nil", tt.name)
			}
			if p.Name != tt.expected.Name {
				t.Errorf("Name mismatch: got %s, want %s", p.Name, tt.expected.Name)
			}
			if p.RequiresLegacyTx != tt.expected.RequiresLegacyTx {
				t.Errorf("RequiresLegacyTx mismatch for %s: got %v, want %v",
					tt.name, p.RequiresLegacyTx, tt.expected.RequiresLegacyTx)
			}
			if p.DefaultRPCURL == "" {
				t.Errorf("DefaultRPCURL should be set for %s", tt.name)
			}
		})
	}
}

func TestGanacheProfile(t *testing.T) {
	p := GanacheProfile()
	if p.DefaultRPCURL != "http://127.0.0.1:7545" {
		t.Errorf("DefaultRPCURL = %s, want http://127.0.0.1:7545", p.DefaultRPCURL)
	}
	if !p.RequiresLegacyTx {
		t.Error("ganache should require legacy transactions")
	}
	if !p.HasUnlockedAccounts {
		t.Error("ganache should expose unlocked accounts")
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := DefaultRegistry()
	if p := r.Get("unknown-node"); p != nil {
		t.Errorf("expected nil for unknown node, got %+v", p)
	}
}

func TestRegistryRegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register(nil)
	r.Register(&NodeProfile{
		Name:             "besu-dev",
		DefaultRPCURL:    "http://127.0.0.1:8545",
		RequiresLegacyTx: true,
	})

	p := r.Get("besu-dev")
	if p == nil {
		t.Fatal("expected besu-dev to be registered")
	}
	if !p.RequiresLegacyTx {
		t.Error("RequiresLegacyTx should be true")
	}
	if p.HasUnlockedAccounts {
		t.Error("HasUnlockedAccounts should be false")
	}
}

func TestHardhatMatchesAnvil(t *testing.T) {
	hh := HardhatProfile()
	anvil := AnvilProfile()

	if hh.Name != "hardhat" {
		t.Errorf("hardhat Name should be 'hardhat', got %s", hh.Name)
	}
	if hh.RequiresLegacyTx != anvil.RequiresLegacyTx || hh.HasUnlockedAccounts != anvil.HasUnlockedAccounts {
		t.Error("hardhat and anvil should have the same capabilities")
	}
}

func TestProfileString(t *testing.T) {
	if s := AnvilProfile().String(); s != "anvil" {
		t.Errorf("String() should return 'anvil', got %s", s)
	}

	var nilProfile *NodeProfile
	if nilProfile.String() != "unknown" {
		t.Errorf("nil.String() should return 'unknown', got %s", nilProfile.String())
	}
}

func TestRegistryNames(t *testing.T) {
	names := DefaultRegistry().Names()
	want := []string{"anvil", "ganache", "geth-dev", "hardhat"}

	if len(names) != len(want) {
		t.Fatalf("expected %d registered names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

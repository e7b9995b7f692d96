package ledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract method names.
const (
	MethodUsers         = "users"
	MethodRegisterUser  = "registerUser"
	MethodJointAccounts = "jointAccounts"
	MethodCreateAcc     = "createAcc"
	MethodSendAmount    = "sendAmount"
)

var requiredMethods = []string{
	MethodUsers,
	MethodRegisterUser,
	MethodJointAccounts,
	MethodCreateAcc,
	MethodSendAmount,
}

//go:embed JointAccountDApp.abi.json
var defaultABIJSON []byte

// Artifact is a compiled ledger contract: its ABI and, when available, its creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// CodeHash identifies the bytecode for the deployment cache.
func (a *Artifact) CodeHash() string {
	return crypto.Keccak256Hash(a.Bytecode).Hex()
}

// CanDeploy reports whether the artifact carries creation bytecode.
func (a *Artifact) CanDeploy() bool {
	return len(a.Bytecode) > 0
}

// DefaultArtifact returns the built-in JointAccountDApp ABI without bytecode.
func DefaultArtifact() *Artifact {
	parsed, err := abi.JSON(bytes.NewReader(defaultABIJSON))
	if err != nil {
		panic(fmt.Sprintf("embedded ABI: %v", err))
	}
	return &Artifact{Name: "JointAccountDApp", ABI: parsed}
}

// LoadArtifact reads an artifact from path. An empty path returns the default artifact.
func LoadArtifact(path string) (*Artifact, error) {
	if path == "" {
		return DefaultArtifact(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	art, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return art, nil
}

// ParseArtifact accepts a Truffle/Hardhat build artifact ({"abi": [...], "bytecode": "0x..."})
// or a bare ABI array, and checks that every ledger method is present.
func ParseArtifact(data []byte) (*Artifact, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty artifact")
	}

	art := &Artifact{Name: "JointAccountDApp"}
	abiJSON := data

	if data[0] == '{' {
		var build struct {
			ContractName string          `json:"contractName"`
			ABI          json.RawMessage `json:"abi"`
			Bytecode     string          `json:"bytecode"`
		}
		if err := json.Unmarshal(data, &build); err != nil {
			return nil, fmt.Errorf("decode build artifact: %w", err)
		}
		if len(build.ABI) == 0 {
			return nil, fmt.Errorf("build artifact has no abi")
		}
		if build.ContractName != "" {
			art.Name = build.ContractName
		}
		if bc := strings.TrimSpace(build.Bytecode); bc != "" && bc != "0x" {
			code, err := hexutil.Decode(bc)
			if err != nil {
				return nil, fmt.Errorf("decode bytecode: %w", err)
			}
			art.Bytecode = code
		}
		abiJSON = build.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("decode abi: %w", err)
	}
	art.ABI = parsed

	var missing []string
	for _, name := range requiredMethods {
		if _, ok := parsed.Methods[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("abi is missing methods: %s", strings.Join(missing, ", "))
	}
	return art, nil
}

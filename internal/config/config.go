// Package config handles configuration loading and validation.
//
// Values are layered in increasing precedence: built-in defaults, an optional
// YAML file (--config), a .env file, JOINTSIM_* environment variables, and
// finally command-line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gateway-fm/jointsim/internal/execnode"
	"github.com/gateway-fm/jointsim/internal/sim"
	"github.com/gateway-fm/jointsim/pkg/types"
)

// Ledger backends.
const (
	BackendRPC    = "rpc"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "JOINTSIM_"

// Config holds jointsim configuration.
type Config struct {
	Backend         string        `yaml:"backend" validate:"oneof=rpc memory"`
	NodeProfile     string        `yaml:"node_profile" validate:"required"`
	RPCURL          string        `yaml:"rpc_url" validate:"omitempty,url"`
	ContractAddress string        `yaml:"contract_address" validate:"omitempty,eth_addr"`
	ArtifactPath    string        `yaml:"artifact_path"`
	PrivateKey      string        `yaml:"private_key" validate:"omitempty,len=64,hexadecimal"`
	ChainID         int64         `yaml:"chain_id" validate:"gte=0"` // 0 = ask the node
	GasLimit        uint64        `yaml:"gas_limit"`                 // 0 = ledger default
	GasTipCap       uint64        `yaml:"gas_tip_cap"`               // wei, 0 = auto
	GasFeeCap       uint64        `yaml:"gas_fee_cap"`               // wei, 0 = auto
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout" validate:"gt=0"`
	MaxTxRate       float64       `yaml:"max_tx_rate" validate:"gte=0"` // submissions per second, 0 = unpaced

	Participants int     `yaml:"participants" validate:"gte=1"`
	Probability  float64 `yaml:"probability" validate:"gte=0,lte=1"`
	MeanBalance  float64 `yaml:"mean_balance" validate:"gt=0"`
	Rounds       int     `yaml:"rounds" validate:"gte=0"`
	BatchSize    int     `yaml:"batch_size" validate:"gt=0"`
	Seed         uint64  `yaml:"seed"` // 0 = random, logged at start

	ChartPath          string `yaml:"chart_path"`
	CSVPath            string `yaml:"csv_path"`
	DatabasePath       string `yaml:"database_path"`
	ListenAddr         string `yaml:"listen_addr"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
}

// Defaults
const (
	DefaultBackend        = BackendRPC
	DefaultNodeProfile    = "ganache"
	DefaultConfirmTimeout = 60 * time.Second
	DefaultChartPath      = "success_ratio.png"
	DefaultCSVPath        = "success_ratio.csv"
	DefaultDatabasePath   = "./data/jointsim.db"
	DefaultCORSOrigins    = "*"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
)

// Default returns the built-in configuration.
func Default() *Config {
	s := sim.DefaultConfig()
	return &Config{
		Backend:            DefaultBackend,
		NodeProfile:        DefaultNodeProfile,
		ConfirmTimeout:     DefaultConfirmTimeout,
		Participants:       s.Participants,
		Probability:        s.Probability,
		MeanBalance:        s.MeanBalance,
		Rounds:             s.Rounds,
		BatchSize:          s.BatchSize,
		ChartPath:          DefaultChartPath,
		CSVPath:            DefaultCSVPath,
		DatabasePath:       DefaultDatabasePath,
		CORSAllowedOrigins: DefaultCORSOrigins,
		LogLevel:           DefaultLogLevel,
		LogFormat:          DefaultLogFormat,
	}
}

// field binds one Config value to a flag and an environment variable.
type field struct {
	name  string
	usage string
	bind  func(fs *pflag.FlagSet, c *Config)
	set   func(c *Config, v string) error
}

func (f field) env() string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.name, "-", "_"))
}

func stringField(name, usage string, ptr func(*Config) *string) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.StringVar(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			*ptr(c) = v
			return nil
		},
	}
}

func intField(name, usage string, ptr func(*Config) *int) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.IntVar(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
	}
}

func int64Field(name, usage string, ptr func(*Config) *int64) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.Int64Var(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
	}
}

func uint64Field(name, usage string, ptr func(*Config) *uint64) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.Uint64Var(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
	}
}

func floatField(name, usage string, ptr func(*Config) *float64) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.Float64Var(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*ptr(c) = f
			return nil
		},
	}
}

func durationField(name, usage string, ptr func(*Config) *time.Duration) field {
	return field{
		name:  name,
		usage: usage,
		bind:  func(fs *pflag.FlagSet, c *Config) { fs.DurationVar(ptr(c), name, *ptr(c), usage) },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = d
			return nil
		},
	}
}

var fields = []field{
	stringField("backend", "Ledger backend (rpc, memory)", func(c *Config) *string { return &c.Backend }),
	stringField("node", "Node profile (ganache, anvil, hardhat, geth-dev)", func(c *Config) *string { return &c.NodeProfile }),
	stringField("rpc-url", "JSON-RPC URL (default: the node profile's)", func(c *Config) *string { return &c.RPCURL }),
	stringField("contract", "Ledger contract address (empty: deploy the artifact)", func(c *Config) *string { return &c.ContractAddress }),
	stringField("artifact", "Contract artifact JSON (Truffle output or bare ABI)", func(c *Config) *string { return &c.ArtifactPath }),
	stringField("private-key", "Hex private key of the sender (empty: node's unlocked account)", func(c *Config) *string { return &c.PrivateKey }),
	int64Field("chain-id", "Chain ID (0: ask the node)", func(c *Config) *int64 { return &c.ChainID }),
	uint64Field("gas-limit", "Gas limit per ledger transaction (0: default)", func(c *Config) *uint64 { return &c.GasLimit }),
	uint64Field("gas-tip-cap", "EIP-1559 priority fee in wei (0: auto)", func(c *Config) *uint64 { return &c.GasTipCap }),
	uint64Field("gas-fee-cap", "EIP-1559 max fee per gas in wei (0: auto)", func(c *Config) *uint64 { return &c.GasFeeCap }),
	durationField("confirm-timeout", "How long to wait for each receipt", func(c *Config) *time.Duration { return &c.ConfirmTimeout }),
	floatField("max-tx-rate", "Maximum ledger submissions per second (0: unlimited)", func(c *Config) *float64 { return &c.MaxTxRate }),
	intField("participants", "Number of participants", func(c *Config) *int { return &c.Participants }),
	floatField("probability", "Probability that a pair gets a relationship", func(c *Config) *float64 { return &c.Probability }),
	floatField("mean-balance", "Mean initial relationship balance", func(c *Config) *float64 { return &c.MeanBalance }),
	intField("rounds", "Number of simulation rounds", func(c *Config) *int { return &c.Rounds }),
	intField("batch-size", "Attempts per success-ratio sample", func(c *Config) *int { return &c.BatchSize }),
	uint64Field("seed", "Random seed (0: random)", func(c *Config) *uint64 { return &c.Seed }),
	stringField("chart", "Chart output path (.png, .svg, .pdf, .jpg); empty to skip", func(c *Config) *string { return &c.ChartPath }),
	stringField("csv", "CSV output path; empty to skip", func(c *Config) *string { return &c.CSVPath }),
	stringField("db", "SQLite deployment cache path; empty to disable", func(c *Config) *string { return &c.DatabasePath }),
	stringField("listen", "Status server listen address; empty to disable", func(c *Config) *string { return &c.ListenAddr }),
	stringField("cors-origins", "Comma-separated allowed origins for the status server", func(c *Config) *string { return &c.CORSAllowedOrigins }),
	stringField("log-level", "Log level (debug, info, warn, error)", func(c *Config) *string { return &c.LogLevel }),
	stringField("log-format", "Log format (json, text)", func(c *Config) *string { return &c.LogFormat }),
}

// RegisterFlags adds the configuration flags to fs, including --config and --env-file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("env-file", ".env", "dotenv file loaded before reading JOINTSIM_* variables")
	defaults := Default()
	for _, f := range fields {
		f.bind(fs, defaults)
	}
}

// Load builds the configuration from every source and validates it.
// fs must have been set up with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path, _ := fs.GetString("config"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	envFile, _ := fs.GetString("env-file")
	if err := loadDotEnv(envFile, fs.Changed("env-file")); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	var flagErr error
	fs.Visit(func(fl *pflag.Flag) {
		for _, f := range fields {
			if f.name == fl.Name && flagErr == nil {
				if err := f.set(cfg, fl.Value.String()); err != nil {
					flagErr = fmt.Errorf("invalid --%s: %w", fl.Name, err)
				}
			}
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing default file is ignored.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, f := range fields {
		v, ok := lookup(f.env())
		if !ok || v == "" {
			continue
		}
		if err := f.set(c, v); err != nil {
			return fmt.Errorf("invalid %s: %w", f.env(), err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.NodeProfile = strings.ToLower(strings.TrimSpace(c.NodeProfile))
	c.PrivateKey = strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x")
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
}

var validate = validator.New()

var chartFormats = map[string]bool{".png": true, ".svg": true, ".pdf": true, ".jpg": true, ".jpeg": true}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Backend == BackendRPC {
		profile := c.Profile()
		if profile == nil {
			return fmt.Errorf("unknown node profile: %s (supported: %s)",
				c.NodeProfile, strings.Join(execnode.DefaultRegistry().Names(), ", "))
		}
		if c.PrivateKey == "" && !profile.HasUnlockedAccounts {
			return fmt.Errorf("node profile %s has no unlocked accounts: a private key is required", profile.Name)
		}
		if c.GasFeeCap > 0 && c.GasTipCap > c.GasFeeCap {
			return fmt.Errorf("gas tip cap (%d) exceeds gas fee cap (%d)", c.GasTipCap, c.GasFeeCap)
		}
	}

	if c.ChartPath != "" && !chartFormats[strings.ToLower(filepath.Ext(c.ChartPath))] {
		return fmt.Errorf("unsupported chart format: %q", filepath.Ext(c.ChartPath))
	}
	return nil
}

// Profile returns the configured node profile, or nil if it is unknown.
func (c *Config) Profile() *execnode.NodeProfile {
	return execnode.DefaultRegistry().Get(c.NodeProfile)
}

// EffectiveRPCURL returns the configured RPC URL, falling back to the node profile's default.
func (c *Config) EffectiveRPCURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	if p := c.Profile(); p != nil {
		return p.DefaultRPCURL
	}
	return ""
}

// Simulation returns the phase parameters.
func (c *Config) Simulation() sim.Config {
	return sim.Config{
		Participants: c.Participants,
		Probability:  c.Probability,
		MeanBalance:  c.MeanBalance,
		Rounds:       c.Rounds,
		BatchSize:    c.BatchSize,
	}
}

// RunConfig returns the parameters published on the status API. The seed is
// the one actually used, which differs from c.Seed when that is zero.
func (c *Config) RunConfig(seed uint64) types.RunConfig {
	rc := types.RunConfig{
		Backend:      c.Backend,
		Contract:     c.ContractAddress,
		Participants: c.Participants,
		Probability:  c.Probability,
		MeanBalance:  c.MeanBalance,
		Rounds:       c.Rounds,
		BatchSize:    c.BatchSize,
		Seed:         seed,
	}
	if c.Backend == BackendRPC {
		rc.NodeProfile = c.NodeProfile
	}
	return rc
}

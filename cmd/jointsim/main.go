// Command jointsim provisions participants, fabricates funded joint accounts
// and simulates unit transfers against a JointAccountDApp ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gateway-fm/jointsim/internal/config"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jointsim",
		Short: "Joint-account economy simulator",
		Long: `jointsim drives a JointAccountDApp ledger through three phases:

  provision   register participants 1..N
  fabricate   open funded joint accounts over a sparse random topology
  simulate    attempt random unit transfers and chart the success ratio

"jointsim run" performs all three in order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newRunCmd(),
		newProvisionCmd(),
		newFabricateCmd(),
		newSimulateCmd(),
		newDeployCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Provision, fabricate and simulate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runAll)
		},
	}
}

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Register any missing participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runProvision)
		},
	}
}

func newFabricateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fabricate",
		Short: "Create funded relationships between registered participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runFabricate)
		},
	}
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run transfer rounds and report the success ratio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runSimulate)
		},
	}
}

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the ledger contract (or reuse the cached deployment) and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendRPC {
				return fmt.Errorf("deploy needs the rpc backend")
			}
			logger := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			env, err := dialNode(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			res, err := env.deploy(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Address.Hex())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jointsim version %s\n", version)
		},
	}
}

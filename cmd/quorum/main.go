// Package main is the entry point for the Quorum CLI: the multi-agent
// deliberation engine behind Loopline squads. It can run a single turn from
// the terminal or serve the HTTP/WebSocket API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/looplinehq/quorum/internal/auth"
	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/data"
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/internal/orchestrator"
	"github.com/looplinehq/quorum/internal/roster"
	"github.com/looplinehq/quorum/internal/server"
	"github.com/looplinehq/quorum/pkg/types"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorum",
		Short: "Quorum - multi-agent deliberation engine",
		Long: `Quorum orchestrates a roster of specialist agents for one question:
it plans who speaks, runs the agents in order against the completion
service, extracts their positions and tool requests, remembers what each
agent learned, and optionally synthesizes the consensus.

Run a turn:     quorum turn -m "Should we migrate?" --roster squad.yaml
Run the server: quorum serve`,
		PersistentPreRunE: initLogging,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.quorum/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quorum v%s\n", version)
		},
	})

	rootCmd.AddCommand(turnCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.Level = logging.LevelDebug
	}
	log = logging.New(cfg)
	logging.SetGlobal(log)
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// setupStack opens everything a turn needs: config, store, provider, engine.
func setupStack() (*config.Config, *data.Store, llm.Provider, *orchestrator.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	if level := logging.ParseLevel(cfg.Logging.Level); !verbose {
		logging.SetLevel(level)
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err == nil {
			if err := log.SetFileOutput(cfg.Logging.File); err != nil {
				log.Warn("file logging disabled: %v", err)
			}
		}
	}

	store, err := data.NewDB(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, fmt.Errorf("create provider: %w", err)
	}

	engine := orchestrator.NewEngine(provider, store, cfg.Orchestrator, log)
	return cfg, store, provider, engine, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// TURN COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func turnCmd() *cobra.Command {
	var (
		message    string
		rosterPath string
		userID     string
		squadID    string
		phase      string
		mode       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run one deliberation turn from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}

			squad, err := roster.LoadFromFile(rosterPath)
			if err != nil {
				return err
			}

			_, store, _, engine, err := setupStack()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := engine.RunTurn(cmd.Context(), &orchestrator.TurnRequest{
				UserID:  userID,
				SquadID: squadID,
				Message: message,
				Roster:  squad.Agents,
				Phase:   types.Phase(phase),
				Mode:    types.ResponseMode(mode),
			})
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "the question to deliberate (required)")
	cmd.Flags().StringVar(&rosterPath, "roster", "~/.quorum/roster.yaml", "agent roster YAML file")
	cmd.Flags().StringVar(&userID, "user", "local", "caller identity")
	cmd.Flags().StringVar(&squadID, "squad", "", "squad scope for memories")
	cmd.Flags().StringVar(&phase, "phase", "proposal", "deliberation phase (proposal|critique|reconciliation)")
	cmd.Flags().StringVar(&mode, "mode", "structured", "response mode (short|structured|detailed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")

	return cmd
}

func printResult(result *orchestrator.TurnResult) {
	fmt.Printf("Plan: %s complexity, %d agents", result.Plan.Complexity, len(result.Plan.Assignments))
	if result.Plan.Fallback {
		fmt.Print(" (fallback)")
	}
	fmt.Println()
	for _, goal := range result.Plan.Goals {
		fmt.Printf("  goal: %s\n", goal)
	}
	fmt.Println()

	for _, resp := range result.Responses {
		fmt.Printf("── %s ─────\n", resp.AgentName)
		fmt.Println(resp.Content)
		if resp.Stance != "" {
			fmt.Printf("stance: %s (confidence %.2f)\n", resp.Stance, resp.Confidence)
		}
		for _, call := range resp.ToolCalls {
			fmt.Printf("tool request: %s - %s\n", call.Tool, call.Args["context"])
		}
		fmt.Println()
	}

	if result.Synthesis != "" {
		fmt.Println("── Synthesis ─────")
		fmt.Println(result.Synthesis)
	}
	if len(result.MemoriesWritten) > 0 {
		fmt.Printf("(%d memories written)\n", len(result.MemoriesWritten))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, provider, engine, err := setupStack()
			if err != nil {
				return err
			}
			defer store.Close()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			srv := server.New(cfg.Server, engine, store, provider, log)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("received %s, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// KEYGEN COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <api-key>",
		Short: "Hash an API key for the server.api_keys config list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashKey(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

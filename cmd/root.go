// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/observability"
)

var (
	cfgFile string
	// appCfg is populated by PersistentPreRunE and read by subcommands.
	appCfg *config.Config
)

// NewRootCommand builds the root command and its subcommand tree. A fresh
// instance per invocation keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oil",
		Short: "oil executes intent-language commands against a live browser session.",
		Long: `oil compiles intent-language lines (goto, observe, click, type, wait, ...)
into wire requests for an in-page engine and runs them against a browser
session. Without a subcommand it starts the interactive loop when stdin is
a terminal.`,
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			if err := initializeConfig(); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				// Initialize a fallback logger so the failure itself is reported properly.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "oil"})
				return err
			}
			applyHomePaths(cfg)
			appCfg = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("starting oil", zap.String("version", Version))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare "oil" drops into the interactive loop when attached to a
			// terminal; otherwise print usage so piped invocations fail loudly
			// instead of hanging on stdin.
			if stdinIsTerminal() {
				return runRepl(cmd.Context())
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.oil/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newReplCmd(),
		newRunCmd(),
		newExecCmd(),
		newHistoryCmd(),
		newGrammarCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command under a signal-aware context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".oil"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("OIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// applyHomePaths fills path settings that default to the user's ~/.oil tree.
func applyHomePaths(cfg *config.Config) {
	home, err := homedir.Dir()
	if err != nil {
		return
	}
	base := filepath.Join(home, ".oil")
	if cfg.Intents.PacksDir == "" {
		cfg.Intents.PacksDir = filepath.Join(base, "packs")
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = filepath.Join(base, "state")
	}
	if cfg.REPL.HistoryFile == "" {
		cfg.REPL.HistoryFile = filepath.Join(base, "history")
	}
}

// stdinIsTerminal reports whether stdin is attached to a character device.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

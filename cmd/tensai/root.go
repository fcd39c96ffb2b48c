package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	tensai "github.com/birchill/10sai-sub003"
)

var (
	verbose bool
	vault   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tensai",
	Short: "An offline-first spaced-repetition flashcard store",
	Long: `Tensai keeps your flashcards in a local document store.
Cards are scheduled by an overdueness ranking and sync bi-directionally
with another store when a server is configured.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&vault, "vault", "", "Card store directory (defaults to the working directory)")
}

func vaultPath() string {
	if vault != "" {
		return vault
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	return cwd
}

func openStore(ctx context.Context) *tensai.CardStore {
	svc, err := tensai.New(ctx, vaultPath(),
		tensai.WithLogger(slog.Default()),
	)
	if err != nil {
		fatal("Failed to open card store", err)
	}
	return svc
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set during build.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "deckgen",
	Short: "Generate slide decks from a topic with a language model",
	Long: `deckgen plans an outline for a topic, writes every slide with a language
model and saves the deck as Marp markdown and as a self-contained HTML page.

The model endpoint is configured through the same environment variables as
the server (LLM_ENDPOINT, LLM_API_KEY, LLM_MODELS); a .env file is loaded
when present.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(newGenerateCmd())
}

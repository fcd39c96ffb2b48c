package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/review"
)

var (
	reviewMax    int
	reviewMaxNew int
)

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run a review session",
	Long: `Review due cards interactively. An interrupted session is
resumed; failed cards are re-asked until answered correctly twice.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		cfg, err := loadConfig(vaultPath())
		if err != nil {
			fatal("Failed to load config", err)
		}
		maxCards := cfg.Review.MaxCards
		if cmd.Flags().Changed("max") {
			maxCards = reviewMax
		}
		maxNew := cfg.Review.MaxNewCards
		if cmd.Flags().Changed("new") {
			maxNew = reviewMaxNew
		}

		selector := review.NewSelector(svc, slog.Default(), nil)

		state, err := selector.Resume(ctx)
		if errors.Is(err, core.ErrNotFound) {
			state, err = selector.Begin(ctx, maxCards, maxNew, svc.ReviewTime())
		} else if err == nil {
			fmt.Println("Resuming interrupted review.")
		}
		if err != nil {
			fatal("Failed to start review", err)
		}

		runSession(ctx, selector, state)
	},
}

func runSession(ctx context.Context, selector *review.Selector, state review.State) {
	reader := bufio.NewReader(os.Stdin)

	for state.Phase == review.PhaseQuestion || state.Phase == review.PhaseAnswer {
		card := state.Current
		fmt.Printf("\n[%d to go]  Q: %s\n", state.QuestionsRemaining(), card.Question)
		fmt.Print("(enter = show answer, q = quit) ")
		if quitRequested(reader) {
			fmt.Println("Review saved; resume with 'tensai review'.")
			return
		}

		state = selector.Show(state)
		fmt.Printf("A: %s\n", card.Answer)
		fmt.Print("Did you get it right? (y/n/q) ")

		var err error
		switch readAnswer(reader) {
		case "y":
			state, err = selector.Pass(ctx, state)
		case "n":
			state, err = selector.Fail(ctx, state)
		default:
			fmt.Println("Review saved; resume with 'tensai review'.")
			return
		}
		if err != nil {
			fatal("Failed to record answer", err)
		}
	}

	fmt.Printf("\nReview complete: %d card(s), %d new.\n",
		state.Completed, state.NewCardsCompleted)
}

func quitRequested(reader *bufio.Reader) bool {
	line, err := reader.ReadString('\n')
	if err != nil {
		return true
	}
	return strings.TrimSpace(line) == "q"
}

func readAnswer(reader *bufio.Reader) string {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "q"
	}
	return strings.ToLower(strings.TrimSpace(line))
}

func init() {
	reviewCmd.Flags().IntVar(&reviewMax, "max", 0, "Maximum cards this session (overrides config)")
	reviewCmd.Flags().IntVar(&reviewMaxNew, "new", 0, "Maximum new cards this session (overrides config)")
	rootCmd.AddCommand(reviewCmd)
}

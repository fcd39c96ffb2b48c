package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	tensai "github.com/birchill/10sai-sub003"
	lcadapter "github.com/birchill/10sai-sub003/pkg/adapters/lifecycle"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream card changes as they happen",
	Long: `Watch the card store and print a line for every card change,
including changes arriving from sync or external edits. Stop with
Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		svc, err := tensai.New(ctx, vaultPath(),
			tensai.WithLogger(slog.Default()),
			tensai.WithWatch(true),
		)
		if err != nil {
			fatal("Failed to open card store", err)
		}
		defer svc.Close()

		source := lcadapter.NewCardSource(svc.Events().SubscribeCards(ctx))
		if err := source.Start(ctx); err != nil {
			fatal("Failed to start event source", err)
		}

		fmt.Println("Watching for card changes (Ctrl-C to stop)...")
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-source.Events():
				if !ok {
					return
				}
				change, isCard := e.(tensai.CardChange)
				if !isCard {
					continue
				}
				if change.Card == nil {
					fmt.Printf("deleted  %s\n", change.ID)
					continue
				}
				fmt.Printf("changed  %s  %s\n", change.ID, change.Card.Question)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

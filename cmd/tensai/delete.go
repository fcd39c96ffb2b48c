package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a card",
	Long:  `Remove a card and its review progress.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		if err := svc.DeleteCard(ctx, args[0]); err != nil {
			fatal("Failed to delete card", err)
		}
		fmt.Printf("Card '%s' deleted.\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

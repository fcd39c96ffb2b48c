package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var doctorRepair bool

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the store for orphaned records",
	Long: `Scan for cards missing their progress half (or the reverse).
Orphans appear transiently during sync; persistent ones are removed
with --repair.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		orphanedCards, err := svc.OrphanedCards(ctx)
		if err != nil {
			fatal("Failed to scan for orphaned cards", err)
		}
		orphanedProgress, err := svc.OrphanedProgress(ctx)
		if err != nil {
			fatal("Failed to scan for orphaned progress", err)
		}

		if len(orphanedCards) == 0 && len(orphanedProgress) == 0 {
			fmt.Println("No orphaned records.")
			return
		}

		for _, id := range orphanedCards {
			fmt.Printf("card without progress: %s\n", id)
		}
		for _, id := range orphanedProgress {
			fmt.Printf("progress without card: %s\n", id)
		}

		if !doctorRepair {
			fmt.Println("Run again with --repair to remove them.")
			return
		}

		for _, id := range append(orphanedCards, orphanedProgress...) {
			// DeleteCard removes whichever halves exist.
			if err := svc.DeleteCard(ctx, id); err != nil {
				fatal("Failed to repair orphan", err)
			}
			fmt.Printf("removed %s\n", id)
		}
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "Remove orphaned records")
	rootCmd.AddCommand(doctorCmd)
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	tensai "github.com/birchill/10sai-sub003"
)

var (
	listType  string
	listLimit int
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards",
	Long: `List cards in creation order, or narrowed to new (never
reviewed) or overdue cards.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		var queryType tensai.GetCardsOptions
		switch listType {
		case "", "all":
			queryType.Type = tensai.QueryAll
		case "new":
			queryType.Type = tensai.QueryNew
		case "overdue":
			queryType.Type = tensai.QueryOverdue
		default:
			fatal("Invalid --type", fmt.Errorf("want all, new or overdue, got %q", listType))
		}
		queryType.Limit = listLimit

		cards, err := svc.GetCards(ctx, queryType)
		if err != nil {
			fatal("Failed to list cards", err)
		}

		for _, card := range cards {
			line := fmt.Sprintf("%s  %s -> %s  (level %d", card.ID, card.Question, card.Answer, card.Progress.Level)
			if card.Progress.Reviewed != nil {
				line += fmt.Sprintf(", reviewed %s", card.Progress.Reviewed.Format("2006-01-02"))
			} else {
				line += ", new"
			}
			line += ")"
			if len(card.Tags) > 0 {
				line += "  [" + strings.Join(card.Tags, ", ") + "]"
			}
			fmt.Println(line)
		}
		fmt.Printf("%d card(s)\n", len(cards))
	},
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "all", "Which cards to list: all, new or overdue")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of cards to list (0 = no limit)")
	rootCmd.AddCommand(listCmd)
}

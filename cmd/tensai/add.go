package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tensai "github.com/birchill/10sai-sub003"
)

var (
	addQuestion string
	addAnswer   string
	addKeywords []string
	addTags     []string
	addStarred  bool
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a card",
	Long:  `Create a new card with the given question and answer.`,
	Run: func(cmd *cobra.Command, args []string) {
		if addQuestion == "" {
			fmt.Println("Error: --question is required")
			cmd.Usage()
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		card, err := svc.PutCard(ctx, tensai.CardPatch{
			Question: &addQuestion,
			Answer:   &addAnswer,
			Keywords: addKeywords,
			Tags:     addTags,
			Starred:  &addStarred,
		})
		if err != nil {
			fatal("Failed to add card", err)
		}

		fmt.Printf("Card '%s' added.\n", card.ID)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addQuestion, "question", "q", "", "Question (front) text")
	addCmd.Flags().StringVarP(&addAnswer, "answer", "a", "", "Answer (back) text")
	addCmd.Flags().StringSliceVar(&addKeywords, "keyword", nil, "Keyword linking the card to notes (repeatable)")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag for organizing cards (repeatable)")
	addCmd.Flags().BoolVar(&addStarred, "starred", false, "Mark the card as starred")
	rootCmd.AddCommand(addCmd)
}

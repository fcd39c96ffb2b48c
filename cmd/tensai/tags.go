package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tagsPrefix string
	tagsLimit  int
)

// tagsCmd represents the tags command
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Suggest tags",
	Long:  `List tags ranked by how often cards use them.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := openStore(ctx)
		defer svc.Close()

		tags, err := svc.GetTags(ctx, tagsPrefix, tagsLimit)
		if err != nil {
			fatal("Failed to look up tags", err)
		}
		for _, tag := range tags {
			fmt.Println(tag)
		}
	},
}

func init() {
	tagsCmd.Flags().StringVarP(&tagsPrefix, "prefix", "p", "", "Only suggest tags with this prefix")
	tagsCmd.Flags().IntVarP(&tagsLimit, "limit", "n", 10, "Maximum number of suggestions")
	rootCmd.AddCommand(tagsCmd)
}

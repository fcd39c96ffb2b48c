package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tensai "github.com/birchill/10sai-sub003"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tensai",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tensai version %s\n", tensai.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

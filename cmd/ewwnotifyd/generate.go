package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/assets"
)

// generateCmd writes the starter eww templates.
var generateCmd = &cobra.Command{
	Use:   "generate css|yuck|all",
	Short: "Generate starter eww stylesheet and widget files",
	Long: `Generate starter eww files into your eww configuration directory.

  css   write ewwnotifyd.scss
  yuck  write ewwnotifyd.yuck
  all   write both`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "css":
			return assets.Generate(true, false)
		case "yuck":
			return assets.Generate(false, true)
		case "all":
			return assets.Generate(true, true)
		default:
			return fmt.Errorf("unknown target %q: expected css, yuck or all", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "postpilot",
	Short: "postpilot — WhatsApp-driven social media assistant for small businesses",
	Long:  "postpilot turns a WhatsApp number into a marketing assistant: clients submit ideas, review drafts, approve and schedule posts, all from chat.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (default ~/.postpilot/config.json)")
}

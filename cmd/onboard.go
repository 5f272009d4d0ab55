package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize postpilot configuration",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
	} else {
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("✓ Created config at %s\n", path)
	}

	fmt.Println("\n🤖 postpilot is ready!")
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Add your record store and OpenAI keys to %s\n", path)
	fmt.Println("  2. Add Twilio credentials (channel.twilio) or a bridge URL (channel.bridge)")
	fmt.Println("  3. Start the webhook: postpilot serve")

	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show postpilot configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("🤖 postpilot Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Model: %s (embeddings: %s)\n", cfg.LLM.Model, cfg.LLM.EmbedModel)
	fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)

	fmt.Println("\nRecord store:")
	if cfg.Records.BaseID != "" || os.Getenv("AIRTABLE_BASE_ID") != "" {
		fmt.Println("  Base: ✓")
	} else {
		fmt.Println("  Base: not configured")
	}

	fmt.Println("\nChannels:")
	if tw := cfg.Channel.Twilio; tw != nil && tw.AccountSID != "" {
		fmt.Println("  Twilio WhatsApp: ✓")
	}
	if br := cfg.Channel.Bridge; br != nil && br.URL != "" {
		fmt.Println("  Bridge: ✓")
	}

	if cfg.Session.RedisURL != "" {
		fmt.Println("\nSessions: redis")
	} else {
		fmt.Println("\nSessions: in-memory")
	}

	return nil
}

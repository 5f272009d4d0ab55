package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/recordstore"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Connect to a self-hosted WhatsApp bridge instead of Twilio",
	Long:  "Run postpilot against a websocket WhatsApp bridge. Inbound messages arrive over the socket and replies ride back on it, bypassing the Twilio webhook entirely.",
	RunE:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	bc := cfg.Channel.Bridge
	if bc == nil || bc.URL == "" {
		return fmt.Errorf("bridge not configured (channel.bridge.url)")
	}

	bridge := channel.NewBridge(bc.URL, bc.Token)
	a, err := buildApp(cfg, func(tables *recordstore.Tables) channel.Sender {
		return phoneSender{tables: tables, inner: bridge}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		bridge.Close()
		cancel()
	}()

	fmt.Printf("🔌 Connecting to WhatsApp bridge at %s...\n", bc.URL)

	return bridge.Run(ctx, func(ctx context.Context, msg channel.Inbound) {
		clientID, err := a.tables.ClientIDByPhone(ctx, msg.Sender)
		if err != nil {
			log.Printf("[Bridge] Phone lookup failed for %s: %v", msg.Sender, err)
			return
		}
		if clientID == "" {
			_ = bridge.Send(ctx, msg.Sender, "⚠️ Sorry, your number is not linked to a client account.")
			return
		}
		clientCfg, err := a.tables.ClientConfig(ctx, clientID)
		if err != nil {
			log.Printf("[Bridge] Client config failed for %s: %v", clientID, err)
			return
		}

		imageURL := ""
		if len(msg.Media) > 0 {
			imageURL = msg.Media[0]
		}
		reply := a.orch.Handle(ctx, clientID, clientCfg.Name, strings.TrimSpace(msg.Content), imageURL)
		if reply == "" {
			return
		}
		if err := bridge.Send(ctx, msg.Sender, reply); err != nil {
			log.Printf("[Bridge] Send failed for %s: %v", msg.Sender, err)
		}
	})
}

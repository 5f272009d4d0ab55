package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/recordstore"
	"github.com/postpilot/postpilot/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WhatsApp webhook server",
	Long: `Start the postpilot webhook server with:
  - Twilio WhatsApp webhook (POST /whatsapp)
  - JSON job APIs for idea intake, curation and publishing
  - Prometheus metrics on /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Port resolution: CLI flag → env var → config.json.
	port := cfg.Server.Port
	if p := os.Getenv("POSTPILOT_PORT"); p != "" {
		if pv, err := strconv.Atoi(p); err == nil {
			port = pv
		}
	}
	if servePort != 0 {
		port = servePort
	}

	twilio, err := makeTwilio(cfg)
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, func(tables *recordstore.Tables) channel.Sender {
		return phoneSender{tables: tables, inner: twilio}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.tables, a.orch, a.flows, a.dispatch,
		time.Duration(cfg.Server.ReplyTimeout)*time.Second)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
	fmt.Printf("🚀 Starting postpilot webhook server on %s...\n", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(addr) }()

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		return nil
	case err := <-errCh:
		return err
	}
}

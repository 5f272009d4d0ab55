package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/recordstore"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal as a given client",
	RunE:  runChat,
}

var (
	chatClientID string
	chatMessage  string
)

func init() {
	chatCmd.Flags().StringVarP(&chatClientID, "client", "c", "", "Client record ID to impersonate (required)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := buildApp(cfg, func(*recordstore.Tables) channel.Sender { return consoleSender{} })
	if err != nil {
		return err
	}
	defer a.Close()

	clientCfg, err := a.tables.ClientConfig(context.Background(), chatClientID)
	if err != nil {
		return fmt.Errorf("loading client %s: %w", chatClientID, err)
	}

	if chatMessage != "" {
		// Single message mode
		fmt.Println(a.orch.Handle(context.Background(), chatClientID, clientCfg.Name, chatMessage, ""))
		return nil
	}

	// Interactive REPL mode
	fmt.Printf("🤖 postpilot chat as %s (type 'quit' or Ctrl+C to leave)\n\n", clientCfg.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	exitCommands := map[string]bool{
		"quit": true, "/exit": true, "/quit": true, ":q": true,
	}

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			fmt.Println("Goodbye!")
			break
		}

		reply := a.orch.Handle(ctx, chatClientID, clientCfg.Name, input, "")
		fmt.Println()
		fmt.Println("🤖 postpilot")
		fmt.Println(reply)
		fmt.Println()
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/recordstore"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run marketing workflows from the command line",
}

var (
	wfClientID string
	wfLimit    int
	wfIdea     string
	wfImageURL string
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Score new ideas against the client's published history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflowApp(func(ctx context.Context, a *app) error {
			verdicts, err := a.flows.CurateIdeas(ctx, wfClientID, wfLimit)
			if err != nil {
				return err
			}
			if len(verdicts) == 0 {
				fmt.Println("No new ideas to curate.")
				return nil
			}
			for _, v := range verdicts {
				fmt.Printf("  %-40s %3d  %s\n", v.Headline, v.Score, v.Priority)
			}
			return nil
		})
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Submit an idea and draft a post for it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if wfIdea == "" {
			return fmt.Errorf("--idea is required")
		}
		return withWorkflowApp(func(ctx context.Context, a *app) error {
			res, err := a.flows.SubmitIdea(ctx, wfClientID, wfIdea, wfImageURL)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Drafted post %s for %s (score %.0f)\n\n%s\n", res.PostID, res.Channel, res.Score, res.Caption)
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish every approved post that is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflowApp(func(ctx context.Context, a *app) error {
			report, err := a.flows.PublishReady(ctx, wfClientID, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("✓ Published %d post(s), %d failed\n", len(report.Published), len(report.Failed))
			for _, id := range report.Failed {
				fmt.Printf("  failed: %s\n", id)
			}
			return nil
		})
	},
}

func init() {
	workflowCmd.PersistentFlags().StringVarP(&wfClientID, "client", "c", "", "Client record ID (required)")
	workflowCmd.MarkPersistentFlagRequired("client")
	curateCmd.Flags().IntVar(&wfLimit, "limit", 20, "Maximum ideas to curate")
	draftCmd.Flags().StringVar(&wfIdea, "idea", "", "Idea text to draft from")
	draftCmd.Flags().StringVar(&wfImageURL, "image", "", "Optional image URL for the post")

	workflowCmd.AddCommand(curateCmd)
	workflowCmd.AddCommand(draftCmd)
	workflowCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(workflowCmd)
}

func withWorkflowApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := buildApp(cfg, func(*recordstore.Tables) channel.Sender { return consoleSender{} })
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

package main

import (
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danyelajunebrown/reparations-pipeline/internal/promotion"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote qualifying records into the confirmed registry",
}

var promoteJobCmd = &cobra.Command{
	Use:   "job [job-id...]",
	Short: "Promote owner rows from completed extraction jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sessionID, _ := cmd.Flags().GetString("session")
		channel, _ := cmd.Flags().GetString("channel")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if sessionID == "" {
			return eris.New("--session is required")
		}
		if channel == "" {
			return eris.New("--channel is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		log := zap.L().With(zap.String("command", "promote.job"))

		var mu sync.Mutex
		var results []*promotion.JobResult

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, jobID := range args {
			jobID := jobID
			g.Go(func() error {
				res, err := env.Promoter.PromoteFromJob(gctx, sessionID, jobID, channel)
				if err != nil {
					return eris.Wrapf(err, "promote job %s", jobID)
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		promoted, skipped, errCount := 0, 0, 0
		for _, res := range results {
			promoted += res.Promoted
			skipped += res.Skipped
			errCount += len(res.Errors)
		}
		log.Info("promotion complete",
			zap.Int("jobs", len(results)),
			zap.Int("promoted", promoted),
			zap.Int("skipped", skipped),
			zap.Int("errors", errCount),
		)
		return printJSON(results)
	},
}

var promoteLeadCmd = &cobra.Command{
	Use:   "lead [lead-id]",
	Short: "Promote a manually reviewed staging lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reviewer, _ := cmd.Flags().GetString("reviewer")
		channel, _ := cmd.Flags().GetString("channel")
		if channel == "" {
			return eris.New("--channel is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Promoter.PromoteByID(ctx, args[0], reviewer, channel)
		if err != nil {
			return eris.Wrapf(err, "promote lead %s", args[0])
		}

		zap.L().Info("lead promoted",
			zap.String("lead_id", args[0]),
			zap.String("individual_id", outcome.Individual.ID),
			zap.String("action", outcome.Action),
		)
		return printJSON(outcome)
	},
}

func init() {
	promoteJobCmd.Flags().String("session", "", "owning session ID (required)")
	promoteJobCmd.Flags().String("channel", "", "confirmation channel recorded in the audit log (required)")
	promoteJobCmd.Flags().Int("concurrency", 4, "concurrent job promotions")
	promoteLeadCmd.Flags().String("reviewer", "", "reviewer identifier (blank records unattributed)")
	promoteLeadCmd.Flags().String("channel", "cli-review", "confirmation channel recorded in the audit log")

	promoteCmd.AddCommand(promoteJobCmd, promoteLeadCmd)
	rootCmd.AddCommand(promoteCmd)
}

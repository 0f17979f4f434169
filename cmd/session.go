package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with contribution sessions from the command line",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session for an archive URL and run the initial analysis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rawURL, _ := cmd.Flags().GetString("url")
		contributor, _ := cmd.Flags().GetString("contributor")
		if rawURL == "" {
			return eris.New("--url is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sess, err := env.Sessions.CreateSession(ctx, rawURL, contributor)
		if err != nil {
			return eris.Wrap(err, "create session")
		}

		reply, err := env.Sessions.AnalyzeURL(ctx, sess.ID)
		if err != nil {
			return eris.Wrap(err, "analyze url")
		}

		zap.L().Info("session started",
			zap.String("session_id", sess.ID),
			zap.String("stage", string(reply.Stage)),
		)
		return printJSON(reply)
	},
}

var sessionChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send a message to an in-progress session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, _ := cmd.Flags().GetString("id")
		message, _ := cmd.Flags().GetString("message")
		if id == "" || message == "" {
			return eris.New("--id and --message are required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reply, err := env.Sessions.Chat(ctx, id, message)
		if err != nil {
			return eris.Wrap(err, "chat")
		}
		return printJSON(reply)
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the full session document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			return eris.New("--id is required")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sess, err := env.Sessions.Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "get session")
		}
		return printJSON(sess)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	sessionStartCmd.Flags().String("url", "", "archive document URL (required)")
	sessionStartCmd.Flags().String("contributor", "", "contributor identifier")
	sessionChatCmd.Flags().String("id", "", "session ID (required)")
	sessionChatCmd.Flags().String("message", "", "message text (required)")
	sessionStatusCmd.Flags().String("id", "", "session ID (required)")

	sessionCmd.AddCommand(sessionStartCmd, sessionChatCmd, sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}

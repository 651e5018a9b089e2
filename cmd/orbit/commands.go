package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/orbit/internal/assistant"
	"github.com/hyperengineering/orbit/internal/types"
	"github.com/hyperengineering/orbit/internal/validation"
)

var (
	runUserID string
	runType   string
	runQuery  string
	stateUser string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop once for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := types.RunRequest{
			UserID:    runUserID,
			RunType:   types.RunType(runType),
			UserQuery: runQuery,
		}
		if err := checkErrors(validation.ValidateRunRequest(req)); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			result, err := a.assistant.Run(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current snapshot for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkErrors(validation.ValidateUserID("user", stateUser)); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			state, err := a.assistant.State(ctx, stateUser)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		})
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the daily digest once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			result, err := a.assistant.DailyDigest(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), types.DigestResponse{
				Success:      true,
				Message:      assistant.DigestMessage(result),
				DigestResult: result,
			})
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runUserID, "user", "", "User ID")
	runCmd.Flags().StringVar(&runType, "type", string(types.RunManual), "Run type (manual|daily)")
	runCmd.Flags().StringVar(&runQuery, "query", "", "Message to record before the run")
	runCmd.MarkFlagRequired("user")

	stateCmd.Flags().StringVar(&stateUser, "user", "", "User ID")
	stateCmd.MarkFlagRequired("user")
}

// withApp loads config, wires the application with logs on stderr, and
// runs fn. The store is closed afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func checkErrors(errs []validation.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = fmt.Errorf("%s: %s", e.Field, e.Message)
	}
	return errors.Join(joined...)
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

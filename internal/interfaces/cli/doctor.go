package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/index"
)

// check 一项连通性检查
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newDoctorCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the embedding API, chat API and index connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}

			var checks []check
			if tk.Embedder != nil {
				checks = append(checks, check{name: "embedding", run: func(ctx context.Context) (string, error) {
					dim, err := tk.Embedder.TestConnection(ctx)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("dimension %d", dim), nil
				}})
			}
			if tk.LLM != nil {
				model := tk.Chat.DefaultPersona().Model
				checks = append(checks, check{name: "chat", run: func(ctx context.Context) (string, error) {
					return "model " + model, tk.LLM.TestConnection(ctx, model)
				}})
			}
			backend := tk.Config.Index.Backend
			if backend == "" {
				backend = config.BackendSQLite
			}
			checks = append(checks, check{name: "index", run: func(ctx context.Context) (string, error) {
				return backend, index.Ping(ctx, tk.Index)
			}})

			return runChecks(cmd, checks, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "timeout for each check")
	return cmd
}

func runChecks(cmd *cobra.Command, checks []check, timeout time.Duration) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		detail, err := c.run(ctx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(out, "[FAIL] %-10s %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "[ OK ] %-10s %s\n", c.name, detail)
	}
	if failed > 0 {
		return errors.New("doctor found failing checks")
	}
	return nil
}

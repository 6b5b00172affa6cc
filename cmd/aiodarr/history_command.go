package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiodarr/aiodarr/internal/database"
	"github.com/aiodarr/aiodarr/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		outcome  string
		kind     string
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded item outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}

			db, err := database.Open(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := history.NewService(db.Conn(), zerolog.Nop())

			if clearAll {
				if err := svc.DeleteAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			}

			result, err := svc.List(cmd.Context(), history.ListOptions{
				Outcome:   history.Outcome(outcome),
				MediaKind: kind,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			if len(result.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(result))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome (succeeded, no_candidates, exhausted, invalid)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by media kind (movie, episode)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded history")
	return cmd
}

func renderHistory(result *history.ListResponse) string {
	rows := make([][]string, 0, len(result.Items))
	for _, e := range result.Items {
		detail := e.Reason
		if e.Outcome == history.OutcomeSucceeded {
			detail = fmt.Sprintf("%s (%s)", e.StreamLabel, e.Quality)
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.Title,
			string(e.Outcome),
			strconv.Itoa(e.Attempts),
			detail,
		})
	}
	out := renderTable(
		[]string{"Time", "Title", "Outcome", "Attempts", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	return fmt.Sprintf("%s\nShowing %d of %d entries", out, len(result.Items), result.TotalCount)
}

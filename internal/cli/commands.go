/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/services"
	"github.com/sioXD/GitLab-TimeTool/internal/stats"
)

func newRefreshCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Load the epic tree once and print what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, cfg, log, func(d *deps) error {
				snap, err := d.svc.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "snapshot %s\n", snap.ID)
				_, _ = fmt.Fprintf(out, "rows: %d  users: %d  labels: %d\n", len(snap.Rows), len(snap.Users), len(snap.Labels))
				_, _ = fmt.Fprintf(out, "spent: %.2fh  estimated: %.2fh\n", snap.Root.HoursSpent(), snap.Root.HoursEstimate())
				return nil
			})
		},
	}
}

func newStatsCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var (
		days       int
		start, end string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print time statistics for a date window",
		Long: `Stats loads the epic tree and prints totals per user and label.
Use --days for a lookback from now, or --start/--end (YYYY-MM-DD) for a
range. Without any of them the whole history is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := services.Query{Days: days}
			var err error
			if q.Start, err = parseFlagDate(start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if q.End, err = parseFlagDate(end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			return withDeps(cmd, cfg, log, func(d *deps) error {
				dash, err := d.svc.Dashboard(cmd.Context(), q)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(dash)
				}
				printStats(cmd, dash)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Only count time logged in the last N days")
	cmd.Flags().StringVar(&start, "start", "", "Window start date (inclusive)")
	cmd.Flags().StringVar(&end, "end", "", "Window end date (inclusive)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full dashboard payload as JSON")
	return cmd
}

func parseFlagDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return stats.ParseDate(v, time.Local)
}

func printStats(cmd *cobra.Command, d *services.Dashboard) {
	out := cmd.OutOrStdout()
	st := d.Stats
	_, _ = fmt.Fprintf(out, "%s (snapshot %s)\n", d.GroupPath, d.SnapshotID)
	_, _ = fmt.Fprintf(out, "spent: %.2fh  estimated: %.2fh\n\n", st.TotalSpent, st.TotalEstimated)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "USER\tHOURS")
	users := append([]string(nil), d.Users...)
	sort.SliceStable(users, func(i, j int) bool { return st.UserHours[users[i]] > st.UserHours[users[j]] })
	for _, u := range users {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\n", u, st.UserHours[u])
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LABEL\tISSUES\tHOURS")
	for _, l := range d.Labels {
		ls := st.LabelStats[l]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\n", l, ls.Count, ls.Hours)
	}
	_ = w.Flush()

	if n := len(st.CumulativeFlow); n > 0 {
		p := st.CumulativeFlow[n-1]
		_, _ = fmt.Fprintf(out, "\nflow %s: todo %d  in progress %d  done %d\n", p.Date, p.Todo, p.InProgress, p.Done)
	}
}

func newReportCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var (
		days int
		send bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an LLM report for the last N days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days > 0 {
				cfg.ReportDays = days
			}
			return withDeps(cmd, cfg, log, func(d *deps) error {
				if send {
					return d.svc.RunScheduledReport(cmd.Context())
				}
				r, err := d.svc.GenerateReport(cmd.Context(), cfg.ReportDays)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), r.Text)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Report period in days (default REPORT_DAYS)")
	cmd.Flags().BoolVar(&send, "send", false, "Deliver the report to TELEGRAM_CHAT_IDS instead of printing it")
	return cmd
}

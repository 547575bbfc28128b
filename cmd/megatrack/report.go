package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"megatrack/internal/model"
	"megatrack/internal/service"
)

func newReportCmd(a *app) *cobra.Command {
	var pos position
	var every time.Duration
	var at string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print progress for a month or week",
		Long: `Print completion counts per week and day.

With --every or --at the report is printed again on that schedule until
interrupted. Without either, the report_interval setting is used when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := pos.filter()
			if err != nil {
				return err
			}
			filter.Day = ""
			userID, err := a.userID(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := printReport(ctx, out, a.summary, userID, filter); err != nil {
				return err
			}

			if every == 0 && at == "" {
				every = a.cfg.ReportInterval
			}
			if every == 0 && at == "" {
				return nil
			}

			scheduler := service.NewSchedulerService(time.Local, newLogger("scheduler"))
			job := func() {
				jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := printReport(jobCtx, out, a.summary, userID, filter); err != nil {
					log.Printf("[error] report: %v", err)
				}
			}
			if every > 0 {
				if _, err := scheduler.ScheduleInterval(every, job); err != nil {
					return fmt.Errorf("schedule report: %w", err)
				}
			}
			if at != "" {
				if _, err := scheduler.ScheduleDaily(at, job); err != nil {
					return fmt.Errorf("schedule report: %w", err)
				}
			}
			scheduler.Start()
			defer scheduler.Stop()

			<-ctx.Done()
			return nil
		},
	}
	pos.register(cmd)
	_ = cmd.MarkFlagRequired("month")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the report at this interval")
	cmd.Flags().StringVar(&at, "at", "", "repeat the report daily at HH:MM")
	return cmd
}

func printReport(ctx context.Context, w io.Writer, summary *service.SummaryService, userID string, filter model.Filter) error {
	text, err := summary.Summary(ctx, userID, filter)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n\n", text)
	return err
}

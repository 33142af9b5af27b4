package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

var processDate string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single day through the pipeline and exit",
	Long: `Process runs one calendar day through the full pipeline synchronously
and prints a JSON summary of what was created.

Examples:

  # Process today
  agendad process

  # Process a specific day
  agendad process --date 2025-01-02`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processDate, "date", "", "day to process (YYYY-MM-DD, default today)")
}

// processSummary is the JSON printed after a one-shot run.
type processSummary struct {
	Day      string                 `json:"day"`
	Events   []model.FormattedEvent `json:"events"`
	Tasks    []model.FormattedTask  `json:"tasks"`
	Rejected []model.RejectedItem   `json:"rejected"`
	Duration string                 `json:"duration"`
}

func runProcess(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if processDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", processDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", processDate)
		}
		date = parsed
	}

	application, err := buildApp(false)
	if err != nil {
		return err
	}
	defer application.logger.Sync() //nolint:errcheck
	defer application.store.Close()

	result, err := application.coord.ProcessDay(context.Background(), date)
	if err != nil {
		return fmt.Errorf("processing %s: %w", model.DayKey(date), err)
	}

	summary := processSummary{
		Day:      model.DayKey(date),
		Events:   result.Events,
		Tasks:    result.Tasks,
		Rejected: result.Rejected,
		Duration: result.Timings.Total.String(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuiexam/internal/config"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/stats"
	"github.com/verte-zerg/tuiexam/internal/store"
)

const defaultHistoryLimit = 20

var (
	historyLimit int
	historyDB    string
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted attempts",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "show the last N submissions (0 for all)")
	cmd.Flags().StringVar(&historyDB, "db", "", "sqlite database path (default: XDG data dir)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, _, err := loadSettings()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "db", &historyDB, fileCfg.Store.Path)
	if historyDB == "" {
		historyDB = config.DefaultDBPath()
	}
	if historyLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}

	st, err := store.Open(historyDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	subs, err := st.ListSubmissions(context.Background(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(subs) > 0 {
		if _, err := color.New(color.FgYellow).Fprintln(out, "Submitted attempts"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		renderHistoryTable(out, subs)
		if _, err := fmt.Fprintln(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := stats.RenderHistorySummary(out, subs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func renderHistoryTable(w io.Writer, subs []model.Submission) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Attempt", "Year", "Shift", "Submitted", "Answered", "Timed out"})

	timedOut := color.New(color.FgRed).SprintFunc()
	for _, sub := range subs {
		flag := "no"
		if sub.TimedOut {
			flag = timedOut("yes")
		}
		table.Append([]string{
			sub.AttemptID,
			strconv.Itoa(sub.Year),
			sub.Shift,
			sub.SubmittedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d/%d", sub.Answered, sub.Total),
			flag,
		})
	}

	table.Render()
}


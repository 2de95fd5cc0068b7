package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/abdul-hamid-achik/drivetest/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyDBFlag    string
	historyLimitFlag int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs",
	Long: `Show the runs recorded with "drivetest run --history". With a run ID,
show the results of that run.

Examples:
  drivetest history --history sqlite:./runs.db
  drivetest history --limit 5
  drivetest history 3f0c9a52-1d7e-4c41-9d0e-2a6f4b1c8e77`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "history", getEnvString("DRIVETEST_HISTORY", ""), "History database, e.g. sqlite:./runs.db (env: DRIVETEST_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of runs to show")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	db := historyDBFlag
	if db == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return err
		}
		db = cfg.History
	}
	if db == "" {
		return fmt.Errorf("no history database: use --history or set \"history\" in the config file")
	}

	store, err := history.Open(db)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		results, err := store.Results(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("run %s not found", args[0])
		}
		printResults(cmd.OutOrStdout(), results)
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, r := range runs {
		status := green("PASS")
		if r.Unsuccessful() > 0 {
			status = red("FAIL")
		}
		fmt.Fprintf(w, "%s  %s  %s  %d passed, %d failed, %d crashed, %d skipped (%s)\n",
			status, r.ID, r.StartedAt.Local().Format(time.DateTime),
			r.Passed, r.Failed, r.Crashed, r.Skipped, r.Duration.Round(time.Millisecond))
	}
}

func printResults(w io.Writer, results []history.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%-16s %s (%s)\n", r.Outcome, r.Path, r.Duration.Round(time.Millisecond))
		if r.Message != "" {
			fmt.Fprintf(w, "                 %s\n", firstLine(r.Message))
		}
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

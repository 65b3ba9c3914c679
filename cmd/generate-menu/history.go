package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/yourusername/menu-generator/pkg/config"
	"github.com/yourusername/menu-generator/pkg/model"
	"github.com/yourusername/menu-generator/pkg/store"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the history database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings(config.EnvFiles(baseDir)...)
		if err != nil {
			return err
		}
		path := historyDB
		if path == "" {
			path = settings.HistoryDB
		}
		if path == "" {
			return errors.New("no history database configured (use --history or MENUGEN_HISTORY_DB)")
		}

		st, err := store.NewStore(absPath(path), nil)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		return printRuns(out, runs)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
}

func printRuns(out io.Writer, runs []*model.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tBACKEND\tDURATION\tIMAGE\tEMAIL\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		email := "-"
		switch {
		case r.EmailSent:
			email = "sent"
		case r.EmailError != "":
			email = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(config.TimestampLayout), r.Status, r.Backend, duration,
			orDash(r.ArtifactPath), email, orDash(r.ErrorText))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

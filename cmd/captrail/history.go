package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/captrail/captrail/pkg/captrail/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past capture sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		return printSessions(store)
	},
}

var rotationsCmd = &cobra.Command{
	Use:   "rotations <session-id>",
	Short: "List a session's archived log files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		return printRotations(store, args[0])
	},
}

func init() {
	historyCmd.AddCommand(rotationsCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.HistoryPath == "" {
		return nil, errors.New("no history_path configured")
	}
	return history.NewSQLiteStore(cfg.HistoryPath)
}

func printSessions(store history.Store) error {
	sessions, err := store.Sessions()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tENDED\tEVENTS\tDROPPED\tBYTES\tROTATIONS")
	for _, s := range sessions {
		ended := "running"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			ended,
			s.Stats.TotalEvents,
			s.Stats.DroppedEvents,
			s.Stats.BytesWritten,
			s.Stats.FilesRotated,
		)
	}
	return w.Flush()
}

func printRotations(store history.Store, sessionID string) error {
	rotations, err := store.Rotations(sessionID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARCHIVE\tSIZE\tROTATED")
	for _, r := range rotations {
		fmt.Fprintf(w, "%s\t%d\t%s\n",
			r.ArchivePath,
			r.SizeBytes,
			r.RotatedAt.Local().Format(time.DateTime),
		)
	}
	return w.Flush()
}

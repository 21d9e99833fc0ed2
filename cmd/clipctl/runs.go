package main

import (
	"clipper/api/db"
	"clipper/api/internal/service"
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
)

func markFailed(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("mark-failed", pflag.ExitOnError)
	olderThan := fs.Duration("older-than", time.Hour, "Only touch files whose run failed at least this long ago")
	fs.Parse(args)

	if *olderThan < 0 {
		return errors.New("--older-than can't be negative")
	}

	database, err := db.New()
	if err != nil {
		return err
	}

	n, err := service.MarkStuckFailed(ctx, database, *olderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Marked %d file(s) as failed\n", n)
	return nil
}

func runs(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("runs", pflag.ExitOnError)
	fileID := fs.String("file", "", "ID of the uploaded file")
	fs.Parse(args)

	if *fileID == "" {
		return errors.New("--file is required")
	}

	database, err := db.New()
	if err != nil {
		return err
	}

	traces, err := service.RunsForFile(ctx, database, *fileID)
	if err != nil {
		return err
	}

	if len(traces) == 0 {
		fmt.Println("No runs recorded for", *fileID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, t := range traces {
		fmt.Fprintf(w, "RUN\t%s\n", t.Run.ID)
		fmt.Fprintf(w, "  status\t%s\n", t.Run.Status)
		fmt.Fprintf(w, "  attempts\t%d\n", t.Run.Attempts)
		fmt.Fprintf(w, "  started\t%s\n", t.Run.CreatedAt.Format(time.RFC3339))
		if t.Run.FinishedAt != nil {
			fmt.Fprintf(w, "  finished\t%s\n", t.Run.FinishedAt.Format(time.RFC3339))
		}
		if t.Run.Error != "" {
			fmt.Fprintf(w, "  error\t%s\n", t.Run.Error)
		}

		for _, s := range t.Steps {
			fmt.Fprintf(w, "  step %s\t%s\t%s\n", s.Name, s.CreatedAt.Format(time.RFC3339), s.Output)
		}
	}

	return nil
}

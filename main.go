package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/trueleo/scalardb/check"
	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/repl"
	"github.com/trueleo/scalardb/table"
)

func main() {
	var (
		dbPath   = flag.String("db", "global.db", "Path to the table file")
		name     = flag.String("name", "", "Table name used when the file is created (default: file name)")
		maxPages = flag.Uint64("max-pages", table.DefaultMaxPages, "Page limit used when the file is created")
		verify   = flag.Bool("check", false, "Verify the table file and exit")
		verbose  = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "scalardb - single table storage engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -db users.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db users.db -check\n", os.Args[0])
	}

	flag.Parse()

	pages, err := parseMaxPages(*maxPages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *verify {
		os.Exit(runCheck(*dbPath))
	}

	os.Exit(runRepl(*dbPath, *name, pages))
}

// parseMaxPages rejects page limits a table header cannot store.
func parseMaxPages(v uint64) (uint32, error) {
	if v == 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("-max-pages %d out of range [1, %d]", v, uint64(math.MaxUint32))
	}
	return uint32(v), nil
}

func runCheck(path string) int {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := check.Verify(ctx, path)

	for _, problem := range report.Problems {
		color.Red(" --- %s", problem)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	color.Green(" +++ %s (%s): %d rows, %d pages, %d leaves, %d internal, height %d",
		report.Table, report.Uid, report.Rows, report.Pages, report.Leaves, report.Internals, report.Height)

	return 0
}

func runRepl(path string, name string, maxPages uint32) int {

	tbl, err := table.Open(table.Config{
		Path:     path,
		Name:     name,
		MaxPages: maxPages,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening table: %v\n", err)
		return 1
	}

	runErr := repl.New(tbl, os.Stdin, os.Stdout).Run()
	closeErr := tbl.Close()

	if err := errors.Join(runErr, closeErr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if dberr.IsFatal(err) {
			return 2
		}
		return 1
	}

	return 0
}

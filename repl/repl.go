// Package repl runs the interactive front-end over an open table.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	goio "io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/trueleo/scalardb/dberr"
	"github.com/trueleo/scalardb/schema"
	"github.com/trueleo/scalardb/statement"
	"github.com/trueleo/scalardb/table"
)

const Prompt = "scalardb> "

var errExit = errors.New("exit")

type Repl struct {
	table *table.Table

	in  *bufio.Scanner
	out goio.Writer

	history []string

	errColor *color.Color
}

func New(t *table.Table, in goio.Reader, out goio.Writer) *Repl {
	return &Repl{
		table:    t,
		in:       bufio.NewScanner(in),
		out:      out,
		errColor: color.New(color.FgRed),
	}
}

func (r *Repl) History() []string {
	return r.history
}

// Run reads lines until .exit or end of input. Errors are printed and the loop
// goes on, except for fatal ones, which are returned.
func (r *Repl) Run() error {

	fmt.Fprintf(r.out, "Welcome to scalardb. Table %s holds %d rows.\n", r.table.Name(), r.table.NumRows())

	for {
		fmt.Fprint(r.out, Prompt)

		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			if err := r.in.Err(); err != nil {
				return fmt.Errorf("%w: reading input: %w", dberr.ErrIO, err)
			}
			return nil
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		r.history = append(r.history, line)

		err := r.Execute(line)

		switch {
		case err == nil:
		case errors.Is(err, errExit):
			return nil
		case dberr.IsFatal(err):
			r.errColor.Fprintf(r.out, "fatal: %v\n", err)
			return err
		default:
			r.errColor.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// Execute runs one meta command or statement.
func (r *Repl) Execute(line string) error {

	if statement.IsMeta(line) {
		meta, err := statement.ParseMeta(line)
		if err != nil {
			return err
		}
		return r.meta(meta)
	}

	st, err := statement.Parse(line, r.table.Schema())
	if err != nil {
		return err
	}

	switch st.Kind {
	case statement.Insert:
		if err := r.table.Insert(st.Values); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Executed.")

	case statement.Read:
		values, err := r.table.Read(st.Index)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, formatRow(values))

	case statement.Select:
		count := 0
		err := r.table.Scan(func(index uint64, values []schema.Value) error {
			count++
			_, err := fmt.Fprintln(r.out, formatRow(values))
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%d rows\n", count)
	}

	return nil
}

func (r *Repl) meta(m statement.Meta) error {

	switch m.Kind {
	case statement.Exit:
		return errExit

	case statement.ShowSchema:
		fmt.Fprintf(r.out, "%s %s\n", r.table.Name(), r.table.Schema())

	case statement.ShowStats:
		return r.stats()

	case statement.Backup:
		return r.backup(m.Arg)
	}

	return nil
}

func (r *Repl) stats() error {

	st, err := r.table.Stats()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "table\t%s\n", r.table.Name())
	fmt.Fprintf(w, "id\t%s\n", r.table.ID())
	fmt.Fprintf(w, "rows\t%d / %d\n", st.Rows, st.MaxRows)
	fmt.Fprintf(w, "rows per page\t%d\n", st.RowsPerPage)
	fmt.Fprintf(w, "tree height\t%d\n", st.Tree.Height)
	fmt.Fprintf(w, "leaves\t%d\n", st.Tree.Leaves)
	fmt.Fprintf(w, "internal pages\t%d\n", st.Tree.Internals)
	fmt.Fprintf(w, "pages\t%d / %d\n", st.Pager.Pages, st.Pager.Capacity)
	fmt.Fprintf(w, "cache hits / misses\t%d / %d\n", st.Pager.Hits, st.Pager.Misses)

	return w.Flush()
}

func (r *Repl) backup(path string) (topErr error) {

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", dberr.ErrIO, err)
	}

	defer func() {
		if closeErr := f.Close(); topErr == nil && closeErr != nil {
			topErr = fmt.Errorf("%w: %w", dberr.ErrIO, closeErr)
		}
	}()

	written, err := r.table.Backup(f)
	if err != nil {
		return err
	}

	slog.Debug("backup written", "path", path, "bytes", written)
	fmt.Fprintf(r.out, "Backed up %d bytes to %s.\n", written, path)

	return nil
}

func formatRow(values []schema.Value) string {

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

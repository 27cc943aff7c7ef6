package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/docmirror/internal/config"
	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/database"
	"github.com/nao1215/docmirror/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not set.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command shows and manages the runs stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [root-url]",
		Short: "Show previous mirror runs",
		Long: `History lists the mirror runs stored in the local history database.

Every finished mirror run is stored with its manifest and the content hash
of each saved page, so later runs of the same root can report which pages
changed. Use --no-history on the mirror command to skip storing a run.

Examples:
  # List recent runs of every site
  docmirror history

  # List runs of one documentation root
  docmirror history https://example.com/docs

  # Show one run with all saved pages
  docmirror history --id 3

  # Show the pages that changed compared to the previous run
  docmirror history --id 3 --changes

  # Write a Markdown report of a run
  docmirror history --id 3 --markdown -o report.md

  # Delete a run
  docmirror history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("id", "i", 0,
		"Show a single run by ID (use the list to see available IDs)")
	cmd.Flags().Bool("changes", false,
		"With --id, list the pages that changed since the previous run of the same root")
	cmd.Flags().Int64("delete", 0,
		"Delete the run with this ID")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 means all)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format, the default for --id (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the output to the specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}
	changes, err := cmd.Flags().GetBool("changes")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if changes && id == 0 {
		return errors.New("--changes requires --id")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	if deleteID != 0 {
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted run %d\n", colorSuccess(prefixSaved), deleteID)
		return nil
	}

	out, closeOut, err := historyOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOut()

	// When writing to a file, the terminal still gets the plain text view.
	var tee io.Writer
	if out != cmd.OutOrStdout() {
		tee = cmd.OutOrStdout()
	}

	if id != 0 {
		if changes {
			changed, err := db.ChangedPages(ctx, id)
			if err != nil {
				return err
			}
			return writeChanged(out, id, changed)
		}

		run, err := db.GetRun(ctx, id)
		if err != nil {
			return err
		}
		w, err := historyWriter(cmd, out, tee, true)
		if err != nil {
			return err
		}
		_, err = w.WriteRun(run)
		return err
	}

	var root string
	if len(args) == 1 {
		root, err = crawler.NormalizeSeed(args[0])
		if err != nil {
			return err
		}
	}

	runs, err := db.ListRuns(ctx, root, limit)
	if err != nil {
		return err
	}
	w, err := historyWriter(cmd, out, tee, false)
	if err != nil {
		return err
	}
	_, err = w.WriteRuns(runs)
	return err
}

// historyWriter returns the report writer selected by the format flags.
// A single run defaults to Markdown and a listing to plain text. A non-nil
// tee additionally receives the plain text view.
func historyWriter(cmd *cobra.Command, out, tee io.Writer, single bool) (report.Writer, error) {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case asMarkdown, single:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}

	if tee == nil {
		return w, nil
	}
	return report.NewMultiWriter(w, report.NewSimpleWriter(tee, report.WithVerbose(single))), nil
}

// historyOutput returns the destination selected by --output. The returned
// function closes the file, if one was opened.
func historyOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// writeChanged prints the URLs that changed in run id.
func writeChanged(out io.Writer, id int64, changed []string) error {
	if changed == nil {
		_, err := fmt.Fprintf(out, "Run %d has no previous run of the same root to compare with.\n", id)
		return err
	}
	if len(changed) == 0 {
		_, err := fmt.Fprintf(out, "No pages changed in run %d.\n", id)
		return err
	}
	if _, err := fmt.Fprintf(out, "%d page(s) changed in run %d:\n", len(changed), id); err != nil {
		return err
	}
	for _, u := range changed {
		if _, err := fmt.Fprintf(out, "  [~] %s\n", u); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/docxref/pkg/docxref/internalerr"
	"github.com/cognicore/docxref/pkg/docxref/store"
	"github.com/cognicore/docxref/pkg/docxref/store/sqlite"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		dbPath   string
		limit    int
		id       string
		document string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or show saved correlation reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("%w: --db required", internalerr.ErrInvalidInput)
			}
			ctx := cmd.Context()
			st, err := sqlite.OpenSQLite(ctx, dbPath)
			if err != nil {
				return fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
			}
			defer st.Close()
			a.logger.Debug("opened history", zap.String("db", dbPath))

			w := cmd.OutOrStdout()
			if id != "" {
				r, ok, err := st.GetReport(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("report %s: %w", id, internalerr.ErrNotFound)
				}
				fmt.Fprintf(w, "Report %s (%s)\n\n%s", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05 MST"), r.Text)
				return nil
			}

			var reports []store.Report
			if document != "" {
				reports, err = st.ReportsForDocument(ctx, document, limit)
			} else {
				reports, err = st.ListReports(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(w, "No saved reports.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tFILES\tCROSS REFS\tMOST CONNECTED")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, humanize.Time(r.CreatedAt), strings.Join(r.Documents, ", "),
					r.TotalCrossReferences, orDash(r.MostConnectedDocumentID))
			}
			return tw.Flush()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&dbPath, "db", "", "SQLite history database (required)")
	fl.IntVar(&limit, "limit", store.DefaultListLimit, "maximum reports to list")
	fl.StringVar(&id, "id", "", "show one report")
	fl.StringVar(&document, "document", "", "only reports that analysed this file name")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

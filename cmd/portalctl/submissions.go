package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/formportal/internal/listing"
)

func newSubmissionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "submissions", Short: "Browse submitted applications"}
	cmd.AddCommand(newSubmissionsListCmd())
	return cmd
}

func newSubmissionsListCmd() *cobra.Command {
	var (
		page, limit         int
		sort, order, search string
		columns             string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of submitted applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cl, err := newClient(cmd)
			if err != nil {
				return err
			}
			st := listing.NewState(listing.DefaultColumns())
			if err := st.SetPageSize(limit); err != nil {
				return err
			}
			st.SetSearch(search)
			if page > 1 {
				st.Page = page
			}
			st.SortField = sort
			if order != listing.Asc && order != listing.Desc {
				return fmt.Errorf("--order must be %s or %s", listing.Asc, listing.Desc)
			}
			st.SortDir = order
			if ids := splitList(columns); len(ids) > 0 {
				st.ShowOnly(ids)
			}

			view := listing.NewLoader(cl).Load(cmd.Context(), "cli", st)
			if view.Notice != "" {
				return errors.New(view.Notice)
			}
			return printListing(cmd.OutOrStdout(), format, view)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", listing.DefaultPageSize, "rows per page (5, 10, 20 or 50)")
	cmd.Flags().StringVar(&sort, "sort", listing.DefaultSort, "sort field")
	cmd.Flags().StringVar(&order, "order", listing.Asc, "sort order (asc|desc)")
	cmd.Flags().StringVar(&search, "search", "", "search term")
	cmd.Flags().StringVar(&columns, "columns", "", "comma separated column ids to show")
	return cmd
}

func printListing(w io.Writer, format string, view listing.View) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(struct {
			Data  any `json:"data"`
			Total int `json:"total"`
		}{view.Rows, view.State.Total}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
		return nil
	case "yaml":
		return yaml.NewEncoder(w).Encode(map[string]any{"data": view.Rows, "total": view.State.Total})
	}
	if view.Empty() {
		fmt.Fprintln(w, listing.EmptyMessage)
		return nil
	}
	cols := view.State.VisibleColumns()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	for _, app := range view.Rows {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = listing.Cell(app, c.Accessor)
		}
		tw.Append(row)
	}
	tw.Render()
	fmt.Fprintf(w, "Showing %d of %d results. Page %d of %d\n",
		len(view.Rows), view.State.Total, view.State.Page, view.State.TotalPages())
	return nil
}

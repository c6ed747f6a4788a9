package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

const dateLayout = "2006-01-02"

// rangeFlags are the listing window flags shared by list and download
type rangeFlags struct {
	from     string
	to       string
	pageSize int
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "start date YYYY-MM-DD (default: 2021-01-01)")
	cmd.Flags().StringVar(&r.to, "to", "", "end date YYYY-MM-DD (default: 2050-01-01)")
	cmd.Flags().IntVar(&r.pageSize, "page-size", 0, "recordings per page, 1-300 (default: download.page_size)")
}

// window parses the date flags; unset dates stay zero so the catalog defaults apply
func (r *rangeFlags) window(defaultPageSize int) (from, to time.Time, pageSize int, err error) {
	if from, err = parseDate("from", r.from); err != nil {
		return
	}
	if to, err = parseDate("to", r.to); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = fmt.Errorf("--to %s is before --from %s", r.to, r.from)
		return
	}

	pageSize = r.pageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize < 1 || pageSize > 300 {
		err = fmt.Errorf("--page-size must be between 1 and 300, got %d", pageSize)
	}
	return
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q, expected YYYY-MM-DD", flag, value)
	}
	return t, nil
}

// createListCommand creates the list subcommand
func createListCommand(opts *cliOptions) *cobra.Command {
	var (
		window rangeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cloud recordings of the authorized user",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			from, to, pageSize, err := window.window(a.cfg.Download.PageSize)
			if err != nil {
				return err
			}
			if err := a.restoreTokens(); err != nil {
				return err
			}

			recordings, err := a.catalog(cmd.OutOrStdout(), nil).ListRecordings(cmd.Context(), from, to, pageSize)
			if err != nil {
				return fmt.Errorf("failed to list recordings: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(recordings, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return printRecordings(cmd.OutOrStdout(), recordings)
		},
	}

	window.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print recordings as JSON")

	return cmd
}

func printRecordings(w io.Writer, recordings []zoom.Recording) error {
	if len(recordings) == 0 {
		_, err := fmt.Fprintln(w, "No recordings found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START (UTC)\tTOPIC\tFILES\tSIZE\tUUID")
	for _, rec := range recordings {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			rec.StartTime.UTC().Format("2006-01-02 15:04"),
			rec.Topic,
			len(rec.RecordingFiles),
			humanize.Bytes(uint64(max(rec.TotalSize, 0))),
			rec.UUID,
		)
	}
	return tw.Flush()
}

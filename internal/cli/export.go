package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-donation-tracker/internal/listing"
	"github.com/tbourn/go-donation-tracker/internal/repo"
	"github.com/tbourn/go-donation-tracker/internal/spreadsheet"
	"github.com/tbourn/go-donation-tracker/internal/sysutil"
)

type exportOptions struct {
	format string
	out    string
	locale string
	sort   string
	dir    string
	query  string
}

func newExportCmd() *cobra.Command {
	var o exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the donation list as TSV or XLSX",
		Long: `Writes the donation list in display order (sorted, then filtered) to a
tab-separated file with a UTF-8 BOM or to an Excel workbook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(db)

			all, err := repo.ListDonations(cmd.Context(), db)
			if err != nil {
				return err
			}
			cfgSort := listing.DefaultSort
			if o.sort != "" {
				cfgSort = listing.SortConfig{Key: listing.Key(o.sort), Direction: listing.ParseDirection(o.dir)}
			}
			rows := listing.Derive(all, cfgSort, o.query)
			tbl := catalog(cfg).Lookup(localeOr(o.locale, cfg))

			var (
				buf  bytes.Buffer
				name string
			)
			switch strings.ToLower(o.format) {
			case "tsv":
				name = spreadsheet.TSVFilename
				err = spreadsheet.WriteTSV(&buf, rows, tbl)
			case "xlsx":
				name = spreadsheet.XLSXFilename
				err = spreadsheet.WriteXLSX(&buf, rows, tbl)
			default:
				return fmt.Errorf("unknown format %q (want tsv or xlsx)", o.format)
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, sysutil.FirstNonEmpty(o.out, name), buf.Bytes(), len(rows))
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "xlsx", "tsv or xlsx")
	f.StringVarP(&o.out, "out", "o", "", "output file (default donations.<format>)")
	f.StringVar(&o.locale, "locale", "", "ar or en (default DEFAULT_LOCALE)")
	f.StringVar(&o.sort, "sort", "", "sort key: date, donorName, amount, paymentMethod")
	f.StringVar(&o.dir, "dir", "asc", "sort direction when --sort is set")
	f.StringVarP(&o.query, "query", "q", "", "search text")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte, count int) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("file", path).Int("bytes", len(data)).Int("count", count).Msg("written")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

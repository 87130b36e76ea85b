package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-donation-tracker/internal/receipt"
	"github.com/tbourn/go-donation-tracker/internal/repo"
	"github.com/tbourn/go-donation-tracker/internal/sysutil"
)

type receiptOptions struct {
	out    string
	locale string
}

func newReceiptCmd() *cobra.Command {
	var o receiptOptions
	cmd := &cobra.Command{
		Use:   "receipt [donation-id]",
		Short: "Write a receipt PDF",
		Long:  `Renders the receipt for a donation, or a blank receipt when no id is given, and writes it as an A4 PDF.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			ctx := cmd.Context()
			tbl := catalog(cfg).Lookup(localeOr(o.locale, cfg))

			var doc receipt.Document
			if len(args) == 1 {
				db, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer closeStore(db)
				d, err := repo.GetDonation(ctx, db, args[0])
				if err != nil {
					return fmt.Errorf("donation %s: %w", args[0], err)
				}
				doc = receipt.Render(d, tbl)
			} else {
				doc = receipt.Render(nil, tbl)
			}

			exp, err := newExporter(ctx, cfg)
			if err != nil {
				return err
			}
			file, err := exp.Export(ctx, &doc)
			if err != nil {
				return err
			}
			return writeOutput(cmd, sysutil.FirstNonEmpty(o.out, file.Name), file.Data, file.Pages)
		},
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output file (default receipt-<id>.pdf)")
	cmd.Flags().StringVar(&o.locale, "locale", "", "ar or en (default DEFAULT_LOCALE)")
	return cmd
}

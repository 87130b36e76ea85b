// Package spreadsheet exports the displayed donation sequence as a
// tab-separated text file (UTF-8 with BOM) or an Excel workbook.
//
// Both formats share one layout: a logo placeholder row, a blank row, a title
// row naming the organization, a blank row, the six-column header, then one
// row per record numbered from 1 in display order.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

// Download names.
const (
	TSVFilename  = "donations.tsv"
	XLSXFilename = "donations.xlsx"

	ContentTypeTSV  = "text/tab-separated-values; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// bom is the UTF-8 byte order mark; spreadsheet apps use it to detect UTF-8.
const bom = "\uFEFF"

// headerRows is the number of rows before the first data row.
const headerRows = 5

// Columns is the number of columns in the header and data rows.
const Columns = 6

// Rows returns the full sheet (header block and data) as strings.
func Rows(records []domain.Donation, tbl i18n.Table) [][]string {
	out := make([][]string, 0, headerRows+len(records))
	out = append(out,
		[]string{tbl.Text(i18n.KeyLogoPlaceholder)},
		[]string{""},
		[]string{tbl.Text(i18n.KeySpreadsheetTitle) + " - " + tbl.Text(i18n.KeyOrgName)},
		[]string{""},
		[]string{
			tbl.Text(i18n.KeyColIndex),
			tbl.Text(i18n.KeyColDate),
			tbl.Text(i18n.KeyColFullName),
			tbl.Text(i18n.KeyColAmount),
			tbl.Text(i18n.KeyColPaymentMethod),
			tbl.Text(i18n.KeyColNotes),
		},
	)
	for i, d := range records {
		out = append(out, []string{
			fmt.Sprintf("%d", i+1),
			d.Date.String(),
			textCell(d.DonorName),
			d.AmountString(),
			tbl.Text(d.PaymentMethod.Display().LabelKey),
			textCell(d.Notes),
		})
	}
	return out
}

// formulaLead lists the leading characters spreadsheet apps read as the
// start of a formula.
const formulaLead = "=+-@\t\r"

// textCell returns user-entered text that a spreadsheet will show literally.
// Values that would open a formula get a leading apostrophe.
func textCell(v string) string {
	if v != "" && strings.ContainsRune(formulaLead, rune(v[0])) {
		return "'" + v
	}
	return v
}

// WriteTSV writes records in display order as tab-separated text.
func WriteTSV(w io.Writer, records []domain.Donation, tbl i18n.Table) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.WriteAll(Rows(records, tbl)); err != nil {
		return fmt.Errorf("write tsv: %w", err)
	}
	return nil
}

// WriteXLSX writes the same layout as an Excel workbook. Amounts are stored
// as numbers and the sheet is mirrored for right-to-left locales.
func WriteXLSX(w io.Writer, records []domain.Donation, tbl i18n.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Donations"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if tbl.Direction() == i18n.RTL {
		rtl := true
		if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
			return fmt.Errorf("sheet view: %w", err)
		}
	}

	rows := Rows(records, tbl)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if i >= headerRows {
			d := records[i-headerRows]
			vals[0] = i - headerRows + 1
			vals[3] = d.Amount.InexactFloat64()
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	if err := f.MergeCell(sheet, "A3", "F3"); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A3", "F3", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A5", "F5", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "F", 20); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Receipt and spreadsheet export handlers.
//
//   - GET /donations/{id}/receipt       (rendered document as JSON)
//   - GET /donations/{id}/receipt.pdf   (image-only PDF, single-flight)
//   - GET /receipt, GET /receipt.pdf    (blank receipt with placeholders)
//   - GET /donations/export.tsv         (tab-separated, UTF-8 BOM)
//   - GET /donations/export.xlsx        (Excel workbook)
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/export"
	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/listing"
	"github.com/tbourn/go-donation-tracker/internal/receipt"
	"github.com/tbourn/go-donation-tracker/internal/shell"
	"github.com/tbourn/go-donation-tracker/internal/spreadsheet"
)

// table returns the translations for the request locale.
func (h *Handlers) table(c *gin.Context) i18n.Table {
	return h.catalog.Lookup(middleware.LocaleFrom(c))
}

// renderFor loads :id (or nothing for the blank routes) and renders it.
func (h *Handlers) renderFor(c *gin.Context, blank bool) (*receipt.Document, bool) {
	var rec *domain.Donation
	if !blank {
		id, valid := donationID(c)
		if !valid {
			return nil, false
		}
		d, err := h.svc.Get(c.Request.Context(), id)
		if err != nil {
			failService(c, err)
			return nil, false
		}
		rec = d
	}
	doc := receipt.Render(rec, h.table(c))
	return &doc, true
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}

// GetReceipt godoc
// @ID          getReceipt
// @Summary     Render a receipt
// @Description Returns the receipt layout for a donation in the request locale (X-Locale / Accept-Language).
// @Tags        Receipts
// @Produce     json
// @Param       id        path    string  true  "Donation ID (UUID)"  format(uuid)
// @Param       X-Locale  header  string  false "ar or en"
// @Success     200  {object} receipt.Document
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Router      /donations/{id}/receipt [get]
func (h *Handlers) GetReceipt(c *gin.Context) {
	doc, valid := h.renderFor(c, false)
	if !valid {
		return
	}
	ok(c, http.StatusOK, doc)
}

// GetBlankReceipt godoc
// @ID          getBlankReceipt
// @Summary     Render a blank receipt
// @Tags        Receipts
// @Produce     json
// @Success     200  {object} receipt.Document
// @Router      /receipt [get]
func (h *Handlers) GetBlankReceipt(c *gin.Context) {
	doc, _ := h.renderFor(c, true)
	ok(c, http.StatusOK, doc)
}

// ReceiptPDF godoc
// @ID          receiptPDF
// @Summary     Export a receipt as PDF
// @Description Rasterizes the receipt and embeds it in an A4 PDF. Only one export runs at a time;
// @Description a concurrent request is dropped with 409.
// @Tags        Receipts
// @Produce     application/pdf
// @Param       id   path  string  true  "Donation ID (UUID)"  format(uuid)
// @Success     200  {file}   file
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Failure     409  {object} handlers.ErrorResponse "Export in progress"
// @Failure     500  {object} handlers.ErrorResponse "Export failed"
// @Router      /donations/{id}/receipt.pdf [get]
func (h *Handlers) ReceiptPDF(c *gin.Context) {
	h.exportPDF(c, false)
}

// BlankReceiptPDF godoc
// @ID          blankReceiptPDF
// @Summary     Export a blank receipt as PDF
// @Tags        Receipts
// @Produce     application/pdf
// @Success     200  {file}   file
// @Failure     409  {object} handlers.ErrorResponse "Export in progress"
// @Failure     500  {object} handlers.ErrorResponse "Export failed"
// @Router      /receipt.pdf [get]
func (h *Handlers) BlankReceiptPDF(c *gin.Context) {
	h.exportPDF(c, true)
}

func (h *Handlers) exportPDF(c *gin.Context, blank bool) {
	doc, valid := h.renderFor(c, blank)
	if !valid {
		return
	}

	sess := h.session(c)
	var already bool
	sess.Apply(func(st shell.State) shell.State {
		already = st.Exporting
		return st.BeginExport()
	})
	f, err := h.exporter.Export(c.Request.Context(), doc)

	switch {
	case errors.Is(err, export.ErrExportInProgress):
		// Dropped: the running export owns the flag and any failure dialog.
		if !already {
			sess.Apply(func(st shell.State) shell.State { return st.EndExport(nil) })
		}
		fail(c, http.StatusConflict, ErrCodeExportInProgress, h.table(c).Text(i18n.KeyExportBusy))
	case err != nil:
		sess.Apply(func(st shell.State) shell.State { return st.EndExport(err) })
		msg := h.table(c).Text(i18n.KeyExportFailedBody)
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, msg+": "+err.Error())
	default:
		sess.Apply(func(st shell.State) shell.State { return st.EndExport(nil) })
		attachment(c, f.Name, f.ContentType, f.Data)
	}
}

// exportRows loads the list in display order for spreadsheet export.
func (h *Handlers) exportRows(c *gin.Context) ([]domain.Donation, bool) {
	all, err := h.svc.List(c.Request.Context())
	if err != nil {
		failService(c, err)
		return nil, false
	}
	cfg, q := listParams(c, h.session(c).State())
	return listing.Derive(all, cfg, q), true
}

// ExportTSV godoc
// @ID          exportTSV
// @Summary     Export donations as TSV
// @Description Tab-separated with a UTF-8 BOM, a header block and rows numbered from 1 in display order.
// @Tags        Exports
// @Produce     text/tab-separated-values
// @Param       sort  query  string  false "Sort key"
// @Param       dir   query  string  false "Sort direction"
// @Param       q     query  string  false "Search text"
// @Success     200  {file}   file
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/export.tsv [get]
func (h *Handlers) ExportTSV(c *gin.Context) {
	rows, valid := h.exportRows(c)
	if !valid {
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteTSV(&buf, rows, h.table(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	attachment(c, spreadsheet.TSVFilename, spreadsheet.ContentTypeTSV, buf.Bytes())
}

// ExportXLSX godoc
// @ID          exportXLSX
// @Summary     Export donations as an Excel workbook
// @Tags        Exports
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success     200  {file}   file
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/export.xlsx [get]
func (h *Handlers) ExportXLSX(c *gin.Context) {
	rows, valid := h.exportRows(c)
	if !valid {
		return
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteXLSX(&buf, rows, h.table(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	attachment(c, spreadsheet.XLSXFilename, spreadsheet.ContentTypeXLSX, buf.Bytes())
}

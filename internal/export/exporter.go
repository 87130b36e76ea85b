package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-donation-tracker/internal/observability"
	"github.com/tbourn/go-donation-tracker/internal/receipt"
)

// ErrExportInProgress is returned when Export is called while another export
// is running. The call is dropped, not queued.
var ErrExportInProgress = errors.New("an export is already in progress")

// ContentTypePDF is the media type of exported files.
const ContentTypePDF = "application/pdf"

// File is a finished export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Pages       int
}

// Filename returns the download name for a record's receipt.
func Filename(recordID string) string {
	if recordID == "" {
		return "receipt-blank.pdf"
	}
	return "receipt-" + recordID + ".pdf"
}

// Archiver stores finished receipts somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// Exporter runs the capture → paginate → assemble pipeline, one export at a
// time across the whole process.
type Exporter struct {
	scale    float64
	capture  func(*receipt.Document, float64) (*image.RGBA, error)
	archiver Archiver

	busy atomic.Bool
}

// NewExporter wires an exporter around r. archiver may be nil.
func NewExporter(r *Rasterizer, scale float64, archiver Archiver) *Exporter {
	if scale < MinScale {
		scale = MinScale
	}
	return &Exporter{scale: scale, capture: r.Capture, archiver: archiver}
}

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool { return e.busy.Load() }

// Export renders doc to a PDF. It returns ErrExportInProgress without doing
// any work when another export is running, and ErrNoCaptureSource when doc is
// nil. The busy flag is cleared on every path.
func (e *Exporter) Export(ctx context.Context, doc *receipt.Document) (File, error) {
	if !e.busy.CompareAndSwap(false, true) {
		exportsDropped.Inc()
		return File{}, ErrExportInProgress
	}
	defer e.busy.Store(false)

	tr := observability.Tracer("export/Exporter")
	ctx, span := tr.Start(ctx, "Export")
	defer span.End()

	f, err := e.run(ctx, span, doc)
	if err != nil {
		exportsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return File{}, err
	}
	exportsTotal.WithLabelValues("ok").Inc()
	exportPages.Observe(float64(f.Pages))

	if e.archiver != nil {
		if aerr := e.archiver.Archive(ctx, f.Name, f.Data); aerr != nil {
			log.Warn().Err(aerr).Str("file", f.Name).Msg("receipt archive failed")
		}
	}
	return f, nil
}

func (e *Exporter) run(ctx context.Context, span trace.Span, doc *receipt.Document) (File, error) {
	if doc == nil {
		return File{}, ErrNoCaptureSource
	}
	span.SetAttributes(attribute.String("donation.id", doc.RecordID))

	img, err := e.capture(doc, e.scale)
	if err != nil {
		return File{}, fmt.Errorf("capture: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	b := img.Bounds()
	layout := Paginate(b.Dx(), b.Dy(), doc.WidthMM, doc.HeightMM)
	data, err := Assemble(img, layout)
	if err != nil {
		return File{}, err
	}
	span.SetAttributes(attribute.Int("pdf.pages", layout.Pages()))
	return File{
		Name:        Filename(doc.RecordID),
		ContentType: ContentTypePDF,
		Data:        data,
		Pages:       layout.Pages(),
	}, nil
}

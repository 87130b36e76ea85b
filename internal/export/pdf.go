package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
)

const imageName = "receipt"

// Assemble embeds img on every page of layout and returns the PDF bytes.
func Assemble(img image.Image, layout Layout) ([]byte, error) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	// Fixed dates keep the output byte-stable for a given image.
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetModificationDate(time.Unix(0, 0).UTC())

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(pngBuf.Bytes()))
	for _, y := range layout.Offsets {
		pdf.AddPage()
		pdf.ImageOptions(imageName, 0, y, layout.ImageWidth, layout.ImageHeight, false, opts, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("assemble pdf: %w", err)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

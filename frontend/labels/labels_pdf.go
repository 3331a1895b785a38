package labels

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

// PackageLabelData is what a printed package label shows.
type PackageLabelData struct {
	Code          string
	Product       string
	SKU           string
	Quantity      int64
	Organization  string
	SaleReference string
	Packer        string
	Status        string
}

func renderPackageLabelPDF(label PackageLabelData, printedAt time.Time) ([]byte, error) {
	return renderPackageLabelsPDF([]PackageLabelData{label}, printedAt)
}

func renderPackageLabelsPDF(labels []PackageLabelData, printedAt time.Time) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	// 100x150 mm thermal label stock.
	pdf := gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: "P", UnitStr: "mm", Size: gofpdf.SizeType{Wd: 100, Ht: 150}})
	pdf.SetTitle("Package Labels", false)
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(false, 0)

	for i, label := range labels {
		code := strings.TrimSpace(label.Code)
		if code == "" {
			return nil, fmt.Errorf("label %d has no code", i)
		}
		barcodePNG, err := renderCode128PNG(code, 900, 260)
		if err != nil {
			return nil, fmt.Errorf("encode barcode %s: %w", code, err)
		}

		pdf.AddPage()
		organization := orDefault(label.Organization, "Unknown Organization")
		product := orDefault(label.Product, "N/A")

		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 8, organization, "", "C", false)
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 6, product, "", "C", false)
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, "SKU: "+orDefault(label.SKU, "-"), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Qty: "+strconv.FormatInt(label.Quantity, 10), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Sale: "+orDefault(label.SaleReference, "-"), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Packer: "+orDefault(label.Packer, "-"), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Status: "+orDefault(label.Status, "unassigned"), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, "Printed: "+printedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")

		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		imageName := fmt.Sprintf("package-barcode-%d-%s", i, code)
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
		pageW, _ := pdf.GetPageSize()
		imgW := 84.0
		imgH := 24.0
		x := (pageW - imgW) / 2
		y := 100.0
		pdf.ImageOptions(imageName, x, y, imgW, imgH, false, opt, 0, "")

		pdf.SetY(y + imgH + 3)
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 8, code, "", 1, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, toNRGBA(scaled)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

package infra

// pdf.go: daily closings report using go-pdf/fpdf.
// A4 landscape with:
//   - Tenant and window header
//   - One block per day (newest first): day totals row
//   - One row per collector under each day
//   - Footer with the generation timestamp

import (
	"bytes"
	"fmt"
	"time"

	"cobranzas/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

var columnasCierre = []struct {
	titulo string
	ancho  float64
}{
	{"Día / Cobrador", 52},
	{"Inicial", 30},
	{"Cobrado", 30},
	{"Prestado", 30},
	{"Gastos", 30},
	{"Ingresos", 30},
	{"Retiros", 30},
	{"Caja final", 35},
}

// GenerateCierresPDF renders the daily closings snapshot and returns the PDF
// bytes.
func GenerateCierresPDF(tenantID string, snap dto.CierresSnapshot, generado time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr("Cierres diarios"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Tenant %s  |  %s a %s", tenantID, snap.Desde, snap.Hasta)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Column header ────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, c := range columnasCierre {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(c.ancho, 6, tr(c.titulo), "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	// ── Rows ─────────────────────────────────────────────────────────────────
	if len(snap.Dias) == 0 {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, tr("Sin movimientos en el período."), "", 1, "L", false, 0, "")
	}
	for _, d := range snap.Dias {
		pdf.SetFont("Helvetica", "B", 8)
		filaCierre(pdf, tr, d.Dia, d.Totales, true)
		pdf.SetFont("Helvetica", "", 8)
		for _, c := range d.Cobradores {
			filaCierre(pdf, tr, "    "+c.CobradorID, c.Totales, false)
		}
	}

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(0, 4, tr("Generado "+generado.Format("02/01/2006 15:04")), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func filaCierre(pdf *fpdf.Fpdf, tr func(string) string, etiqueta string, t dto.Totales, destacada bool) {
	borde := ""
	if destacada {
		borde = "T"
	}
	montos := []decimal.Decimal{t.Inicial, t.Cobrado, t.Prestado, t.Gastos, t.Ingresos, t.Retiros, t.CajaFinal}
	pdf.CellFormat(columnasCierre[0].ancho, 5, tr(etiqueta), borde, 0, "L", false, 0, "")
	for i, m := range montos {
		pdf.CellFormat(columnasCierre[i+1].ancho, 5, "$"+m.StringFixed(2), borde, 0, "R", false, 0, "")
	}
	pdf.Ln(-1)
}

package infra

// pdf.go — closing report rendering using go-pdf/fpdf.
// Produces an A4 "cierre de caja" document: session metadata, the per-tender
// breakdown table (esperado / declarado / diferencia), aggregate totals,
// variance narrative and the integrity hash. Rendering only — every number
// comes from the sealed report, nothing is recomputed here.

import (
	"fmt"
	"os"
	"path/filepath"

	"novapos/internal/dto"

	"github.com/go-pdf/fpdf"
)

// ReportePDF renders closing reports into storagePath.
type ReportePDF struct {
	storagePath string
}

func NewReportePDF(storagePath string) *ReportePDF {
	return &ReportePDF{storagePath: storagePath}
}

// RenderReporteCierre writes cierre_{sesion}.pdf and returns its path.
// Re-rendering the same session overwrites the same file.
func (p *ReportePDF) RenderReporteCierre(r *dto.ReporteCierreResponse) (string, error) {
	if err := os.MkdirAll(p.storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	filePath := filepath.Join(p.storagePath, fmt.Sprintf("cierre_%s.pdf", r.SesionID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Cierre de caja", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Sesion %s", r.SesionID), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Punto de venta %d", r.PuntoDeVenta), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	// ── Metadata ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	meta := [][2]string{
		{"Apertura", r.OpenedAt},
		{"Cierre (corte del libro de ventas)", r.ClosedAt},
		{"Abierta por", r.AbiertaPor},
		{"Cerrada por", r.CerradaPor},
		{"Monto inicial", r.MontoInicial.StringFixed(2)},
	}
	for _, row := range meta {
		pdf.CellFormat(70, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-70, 6, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Breakdown table ──────────────────────────────────────────────────────
	colW := contentW / 4
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colW, 7, "Metodo", "1", 0, "L", false, 0, "")
	pdf.CellFormat(colW, 7, "Esperado", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 7, "Declarado", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 7, "Diferencia", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, fila := range r.Desglose {
		pdf.CellFormat(colW, 6, fila.Metodo, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW, 6, fila.Esperado.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW, 6, fila.Declarado.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW, 6, fila.Diferencia.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colW, 7, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(colW, 7, r.EsperadoTotal.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 7, r.DeclaradoTotal.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 7, r.DiferenciaTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(3)

	// ── Session activity ─────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	actividad := [][2]string{
		{"Ventas", fmt.Sprintf("%d (%s)", r.Totales.Ventas, r.Totales.MontoVentas.StringFixed(2))},
		{"Devoluciones", fmt.Sprintf("%d (%s)", r.Totales.Devoluciones, r.Totales.MontoDevoluciones.StringFixed(2))},
		{"Retiros", fmt.Sprintf("%d (%s)", r.Totales.Retiros, r.Totales.MontoRetiros.StringFixed(2))},
		{"Refuerzos", fmt.Sprintf("%d (%s)", r.Totales.Refuerzos, r.Totales.MontoRefuerzos.StringFixed(2))},
	}
	for _, row := range actividad {
		pdf.CellFormat(70, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-70, 6, row[1], "", 1, "L", false, 0, "")
	}

	// ── Narrative ────────────────────────────────────────────────────────────
	if r.MotivoDiferencia != nil && *r.MotivoDiferencia != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 6, "Motivo de la diferencia", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(contentW, 5, *r.MotivoDiferencia, "", "L", false)
	}
	if r.Observaciones != nil && *r.Observaciones != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 6, "Observaciones", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(contentW, 5, *r.Observaciones, "", "L", false)
	}

	// ── Seal ─────────────────────────────────────────────────────────────────
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Hash de integridad (SHA-256)", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 7)
	pdf.MultiCell(contentW, 4, r.HashSeguridad, "", "L", false)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Generado %s", r.GeneradoEn), "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write %s: %w", filePath, err)
	}
	return filePath, nil
}

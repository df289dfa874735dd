package service

// reporte_cierre.go — closing report assembly.
//
// The report is a read-only projection of the sealed session row. It never
// recomputes expected amounts or differences: recomputing would let the
// document drift from what HashSeguridad covers.

import (
	"time"

	"novapos/internal/apierror"
	"novapos/internal/dto"
	"novapos/internal/model"

	"github.com/shopspring/decimal"
)

// ReportePDFRenderer turns a closing report into a printable artifact and
// returns the file path. Implemented by infra with go-pdf/fpdf.
type ReportePDFRenderer interface {
	RenderReporteCierre(r *dto.ReporteCierreResponse) (string, error)
}

// BuildReporteCierre transforms a closed, sealed session into the structured
// closing document. Idempotent: same session, same document (GeneradoEn is
// the only call-dependent field).
func BuildReporteCierre(s *model.SesionCaja) (*dto.ReporteCierreResponse, error) {
	if s.Estado != model.EstadoCerrada {
		return nil, apierror.State("La sesión aún está abierta, no hay reporte de cierre")
	}
	if s.HashSeguridad == nil || s.ClosedAt == nil || s.CerradaPorID == nil {
		// A cerrada row always carries these; a hole means the row was
		// tampered with outside this engine.
		return nil, apierror.State("Sesión cerrada con registro de cierre incompleto")
	}

	esperado := montosResponse(s.EsperadoEfectivo, s.EsperadoDebito, s.EsperadoCredito, s.EsperadoPix, s.EsperadoOtro)
	declarado := montosResponse(s.DeclaradoEfectivo, s.DeclaradoDebito, s.DeclaradoCredito, s.DeclaradoPix, s.DeclaradoOtro)
	diferencia := montosResponse(s.DiferenciaEfectivo, s.DiferenciaDebito, s.DiferenciaCredito, s.DiferenciaPix, s.DiferenciaOtro)

	desglose := make([]dto.FilaReporte, 0, len(model.Metodos))
	for _, metodo := range model.Metodos {
		desglose = append(desglose, dto.FilaReporte{
			Metodo:     metodo,
			Esperado:   porMetodo(esperado, metodo),
			Declarado:  porMetodo(declarado, metodo),
			Diferencia: porMetodo(diferencia, metodo),
		})
	}

	return &dto.ReporteCierreResponse{
		SesionID:     s.ID.String(),
		ComercioID:   s.ComercioID.String(),
		PuntoDeVenta: s.PuntoDeVenta,
		AbiertaPor:   s.AbiertaPorID.String(),
		CerradaPor:   s.CerradaPorID.String(),
		OpenedAt:     s.OpenedAt.UTC().Format(time.RFC3339),
		ClosedAt:     s.ClosedAt.UTC().Format(time.RFC3339),

		MontoInicial: s.MontoInicial,
		Desglose:     desglose,

		EsperadoTotal:   esperado.Total,
		DeclaradoTotal:  declarado.Total,
		DiferenciaTotal: deref(s.DiferenciaTotal),

		MotivoDiferencia: s.MotivoDiferencia,
		Observaciones:    s.Observaciones,

		Totales:       *totalesResponse(s),
		HashSeguridad: *s.HashSeguridad,
		GeneradoEn:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func porMetodo(m *dto.MontosPorMetodo, metodo string) decimal.Decimal {
	switch metodo {
	case model.MetodoEfectivo:
		return m.Efectivo
	case model.MetodoDebito:
		return m.Debito
	case model.MetodoCredito:
		return m.Credito
	case model.MetodoPix:
		return m.Pix
	default:
		return m.Otro
	}
}

package service

import (
	"context"
	"time"

	"novapos/internal/apierror"
	"novapos/internal/arqueo"
	"novapos/internal/dto"
	"novapos/internal/model"
	"novapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CierreNotifier receives the "sesión cerrada" domain event. Delivery is
// best-effort: the cierre itself never depends on it.
type CierreNotifier interface {
	NotificarCierre(ctx context.Context, comercioID, sesionID uuid.UUID) error
}

type CajaService interface {
	Abrir(ctx context.Context, comercioID, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	Cerrar(ctx context.Context, comercioID, usuarioID, sesionID uuid.UUID, req dto.CerrarCajaRequest) (*dto.SesionCajaResponse, error)
	ListSesiones(ctx context.Context, comercioID uuid.UUID, f dto.ListarSesionesFiltro) ([]dto.SesionCajaResponse, error)
	SesionActiva(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int) (*dto.SesionCajaResponse, error)
	ObtenerReporte(ctx context.Context, comercioID, sesionID uuid.UUID) (*dto.ReporteCierreResponse, error)
}

type cajaService struct {
	repo     repository.CajaRepository
	ledger   repository.LedgerRepository
	notifier CierreNotifier // nil disables notification

	// motivoObligatorio: reject a cierre with |diferencia_total| > 0 and no
	// motivo_diferencia. Injected policy, see config.CierreMotivoObligatorio.
	motivoObligatorio bool
}

func NewCajaService(repo repository.CajaRepository, ledger repository.LedgerRepository, notifier CierreNotifier, motivoObligatorio bool) CajaService {
	return &cajaService{
		repo:              repo,
		ledger:            ledger,
		notifier:          notifier,
		motivoObligatorio: motivoObligatorio,
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, comercioID, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if comercioID == uuid.Nil {
		return nil, apierror.ValidationField("comercio_id", "required")
	}
	if req.MontoInicial.IsNegative() {
		return nil, apierror.ValidationField("monto_inicial", "min")
	}

	// Friendly pre-check; the partial unique index is what actually closes
	// the race between two concurrent aperturas.
	if existing, err := s.repo.FindSesionAbiertaPorPDV(ctx, comercioID, req.PuntoDeVenta); err == nil && existing != nil {
		return nil, apierror.Conflict("Ya existe una caja abierta en este punto de venta")
	} else if err != nil && apierror.KindOf(err) != apierror.KindNotFound {
		return nil, err
	}

	sesion := &model.SesionCaja{
		ComercioID:   comercioID,
		PuntoDeVenta: req.PuntoDeVenta,
		AbiertaPorID: usuarioID,
		MontoInicial: req.MontoInicial,
		Estado:       model.EstadoAbierta,
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateSesion(ctx, sesion); err != nil {
		return nil, err
	}

	log.Info().
		Str("sesion_id", sesion.ID.String()).
		Str("comercio_id", comercioID.String()).
		Int("punto_de_venta", req.PuntoDeVenta).
		Msg("caja: sesión abierta")

	return toSesionResponse(sesion), nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// All-or-nothing: any failure before the single guarded UPDATE leaves the
// session abierta and untouched; the caller retries the whole cierre.

func (s *cajaService) Cerrar(ctx context.Context, comercioID, usuarioID, sesionID uuid.UUID, req dto.CerrarCajaRequest) (*dto.SesionCajaResponse, error) {
	sesion, err := s.repo.FindSesion(ctx, comercioID, sesionID)
	if err != nil {
		return nil, err
	}
	if sesion.Estado != model.EstadoAbierta {
		return nil, apierror.State("La sesión ya está cerrada")
	}

	// Point-in-time ledger snapshot over [opened_at, now). Sales posted
	// after this instant belong to the next session — the report records the
	// snapshot timestamp as closed_at.
	cierreEn := time.Now().UTC()
	totales, err := s.ledger.TotalesPorVentana(ctx, comercioID, sesion.PuntoDeVenta, sesion.OpenedAt, cierreEn)
	if err != nil {
		return nil, apierror.Dependency("Libro de ventas no disponible, reintente el cierre", err)
	}

	declarado, err := resolverDeclaracion(req.Declaracion, *totales)
	if err != nil {
		return nil, err
	}

	resultado := arqueo.Calcular(sesion.MontoInicial, *totales, declarado)

	if s.motivoObligatorio && !resultado.DiferenciaTotal.IsZero() &&
		(req.MotivoDiferencia == nil || *req.MotivoDiferencia == "") {
		return nil, apierror.ValidationField("motivo_diferencia", "required_when_diferencia")
	}

	aplicarCierre(sesion, usuarioID, cierreEn, *totales, resultado, req)

	snapshot := SnapshotDeSesion(sesion)
	hash := arqueo.Sellar(snapshot)
	sesion.HashSeguridad = &hash

	if err := s.repo.CerrarSesion(ctx, sesion); err != nil {
		return nil, err
	}

	log.Info().
		Str("sesion_id", sesion.ID.String()).
		Str("comercio_id", comercioID.String()).
		Str("diferencia_total", resultado.DiferenciaTotal.StringFixed(2)).
		Str("hash", hash).
		Msg("caja: sesión cerrada y sellada")

	// Domain event — notification failure never undoes a durable cierre.
	if s.notifier != nil {
		if err := s.notifier.NotificarCierre(ctx, comercioID, sesion.ID); err != nil {
			log.Error().Err(err).Str("sesion_id", sesion.ID.String()).
				Msg("caja: no se pudo encolar la notificación de cierre")
		}
	}

	return toSesionResponse(sesion), nil
}

// resolverDeclaracion defaults undeclared tenders to zero, except where the
// ledger shows activity: hiding a used tender behind an implicit zero would
// mask real faltantes, so that case is rejected.
func resolverDeclaracion(d dto.DeclaracionCierre, totales arqueo.TotalesLedger) (arqueo.Montos, error) {
	valores := map[string]*decimal.Decimal{
		model.MetodoEfectivo: d.Efectivo,
		model.MetodoDebito:   d.Debito,
		model.MetodoCredito:  d.Credito,
		model.MetodoPix:      d.Pix,
		model.MetodoOtro:     d.Otro,
	}

	faltantes := map[string]string{}
	var declarado arqueo.Montos
	for _, metodo := range model.Metodos {
		v := valores[metodo]
		if v == nil {
			if totales.TieneActividad(metodo) {
				faltantes["declaracion."+metodo] = "required_con_actividad"
			}
			continue
		}
		if v.IsNegative() {
			faltantes["declaracion."+metodo] = "min"
			continue
		}
		switch metodo {
		case model.MetodoEfectivo:
			declarado.Efectivo = *v
		case model.MetodoDebito:
			declarado.Debito = *v
		case model.MetodoCredito:
			declarado.Credito = *v
		case model.MetodoPix:
			declarado.Pix = *v
		case model.MetodoOtro:
			declarado.Otro = *v
		}
	}
	if len(faltantes) > 0 {
		return arqueo.Montos{}, apierror.Validation("Declaración de cierre incompleta", faltantes)
	}
	return declarado, nil
}

// aplicarCierre copies every frozen cierre field onto the row (except the
// hash, sealed afterwards over exactly these values).
func aplicarCierre(sesion *model.SesionCaja, usuarioID uuid.UUID, cierreEn time.Time, totales arqueo.TotalesLedger, r arqueo.Resultado, req dto.CerrarCajaRequest) {
	sesion.Estado = model.EstadoCerrada
	sesion.CerradaPorID = &usuarioID
	sesion.ClosedAt = &cierreEn

	sesion.DeclaradoEfectivo = ptr(r.Declarado.Efectivo)
	sesion.DeclaradoDebito = ptr(r.Declarado.Debito)
	sesion.DeclaradoCredito = ptr(r.Declarado.Credito)
	sesion.DeclaradoPix = ptr(r.Declarado.Pix)
	sesion.DeclaradoOtro = ptr(r.Declarado.Otro)

	sesion.EsperadoEfectivo = ptr(r.Esperado.Efectivo)
	sesion.EsperadoDebito = ptr(r.Esperado.Debito)
	sesion.EsperadoCredito = ptr(r.Esperado.Credito)
	sesion.EsperadoPix = ptr(r.Esperado.Pix)
	sesion.EsperadoOtro = ptr(r.Esperado.Otro)

	sesion.DiferenciaEfectivo = ptr(r.Diferencia.Efectivo)
	sesion.DiferenciaDebito = ptr(r.Diferencia.Debito)
	sesion.DiferenciaCredito = ptr(r.Diferencia.Credito)
	sesion.DiferenciaPix = ptr(r.Diferencia.Pix)
	sesion.DiferenciaOtro = ptr(r.Diferencia.Otro)
	sesion.DiferenciaTotal = ptr(r.DiferenciaTotal)

	sesion.MotivoDiferencia = req.MotivoDiferencia
	sesion.Observaciones = req.Observaciones

	sesion.TotalVentas = intPtr(totales.CantVentas)
	sesion.MontoTotalVentas = ptr(totales.Ventas.Total())
	sesion.TotalDevoluciones = intPtr(totales.CantDevoluciones)
	sesion.MontoTotalDevoluciones = ptr(totales.Devoluciones.Total())
	sesion.TotalRetiros = intPtr(totales.CantRetiros)
	sesion.MontoTotalRetiros = ptr(totales.MontoRetiros)
	sesion.TotalRefuerzos = intPtr(totales.CantRefuerzos)
	sesion.MontoTotalRefuerzos = ptr(totales.MontoRefuerzos)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *cajaService) ListSesiones(ctx context.Context, comercioID uuid.UUID, f dto.ListarSesionesFiltro) ([]dto.SesionCajaResponse, error) {
	if comercioID == uuid.Nil {
		return nil, apierror.ValidationField("comercio_id", "required")
	}
	sesiones, err := s.repo.ListSesiones(ctx, comercioID, f)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SesionCajaResponse, 0, len(sesiones))
	for i := range sesiones {
		out = append(out, *toSesionResponse(&sesiones[i]))
	}
	return out, nil
}

func (s *cajaService) SesionActiva(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int) (*dto.SesionCajaResponse, error) {
	sesion, err := s.repo.FindSesionAbiertaPorPDV(ctx, comercioID, puntoDeVenta)
	if err != nil {
		return nil, err
	}
	return toSesionResponse(sesion), nil
}

func (s *cajaService) ObtenerReporte(ctx context.Context, comercioID, sesionID uuid.UUID) (*dto.ReporteCierreResponse, error) {
	sesion, err := s.repo.FindSesion(ctx, comercioID, sesionID)
	if err != nil {
		return nil, err
	}
	return BuildReporteCierre(sesion)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func intPtr(n int) *int { return &n }

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func toSesionResponse(s *model.SesionCaja) *dto.SesionCajaResponse {
	resp := &dto.SesionCajaResponse{
		ID:           s.ID.String(),
		ComercioID:   s.ComercioID.String(),
		PuntoDeVenta: s.PuntoDeVenta,
		Estado:       s.Estado,
		AbiertaPor:   s.AbiertaPorID.String(),
		MontoInicial: s.MontoInicial,
		OpenedAt:     s.OpenedAt.UTC().Format(time.RFC3339),
	}
	if s.CerradaPorID != nil {
		v := s.CerradaPorID.String()
		resp.CerradaPor = &v
	}
	if s.ClosedAt != nil {
		v := s.ClosedAt.UTC().Format(time.RFC3339)
		resp.ClosedAt = &v
	}
	if s.Estado != model.EstadoCerrada {
		return resp
	}

	resp.Esperado = montosResponse(s.EsperadoEfectivo, s.EsperadoDebito, s.EsperadoCredito, s.EsperadoPix, s.EsperadoOtro)
	resp.Declarado = montosResponse(s.DeclaradoEfectivo, s.DeclaradoDebito, s.DeclaradoCredito, s.DeclaradoPix, s.DeclaradoOtro)
	resp.Diferencia = montosResponse(s.DiferenciaEfectivo, s.DiferenciaDebito, s.DiferenciaCredito, s.DiferenciaPix, s.DiferenciaOtro)
	resp.DiferenciaTotal = s.DiferenciaTotal
	resp.MotivoDiferencia = s.MotivoDiferencia
	resp.Observaciones = s.Observaciones
	resp.HashSeguridad = s.HashSeguridad
	resp.Totales = totalesResponse(s)
	return resp
}

func montosResponse(efectivo, debito, credito, pix, otro *decimal.Decimal) *dto.MontosPorMetodo {
	m := &dto.MontosPorMetodo{
		Efectivo: deref(efectivo),
		Debito:   deref(debito),
		Credito:  deref(credito),
		Pix:      deref(pix),
		Otro:     deref(otro),
	}
	m.Total = m.Efectivo.Add(m.Debito).Add(m.Credito).Add(m.Pix).Add(m.Otro)
	return m
}

func totalesResponse(s *model.SesionCaja) *dto.TotalesSesion {
	derefInt := func(n *int) int {
		if n == nil {
			return 0
		}
		return *n
	}
	return &dto.TotalesSesion{
		Ventas:            derefInt(s.TotalVentas),
		MontoVentas:       deref(s.MontoTotalVentas),
		Devoluciones:      derefInt(s.TotalDevoluciones),
		MontoDevoluciones: deref(s.MontoTotalDevoluciones),
		Retiros:           derefInt(s.TotalRetiros),
		MontoRetiros:      deref(s.MontoTotalRetiros),
		Refuerzos:         derefInt(s.TotalRefuerzos),
		MontoRefuerzos:    deref(s.MontoTotalRefuerzos),
	}
}

// SnapshotDeSesion rebuilds the sealed snapshot from a session row. Called
// with the fields frozen at cierre; cmd/verificarsello uses it to re-derive
// the canonical hash for tamper checks.
func SnapshotDeSesion(s *model.SesionCaja) arqueo.SnapshotCierre {
	derefStr := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	derefInt := func(n *int) int {
		if n == nil {
			return 0
		}
		return *n
	}
	var cerradaPor uuid.UUID
	if s.CerradaPorID != nil {
		cerradaPor = *s.CerradaPorID
	}
	var closedAt time.Time
	if s.ClosedAt != nil {
		closedAt = *s.ClosedAt
	}
	return arqueo.SnapshotCierre{
		SesionID:     s.ID,
		ComercioID:   s.ComercioID,
		PuntoDeVenta: s.PuntoDeVenta,
		AbiertaPorID: s.AbiertaPorID,
		CerradaPorID: cerradaPor,
		OpenedAt:     s.OpenedAt,
		ClosedAt:     closedAt,

		MontoInicial: s.MontoInicial,
		Esperado: arqueo.Montos{
			Efectivo: deref(s.EsperadoEfectivo),
			Debito:   deref(s.EsperadoDebito),
			Credito:  deref(s.EsperadoCredito),
			Pix:      deref(s.EsperadoPix),
			Otro:     deref(s.EsperadoOtro),
		},
		Declarado: arqueo.Montos{
			Efectivo: deref(s.DeclaradoEfectivo),
			Debito:   deref(s.DeclaradoDebito),
			Credito:  deref(s.DeclaradoCredito),
			Pix:      deref(s.DeclaradoPix),
			Otro:     deref(s.DeclaradoOtro),
		},
		Diferencia: arqueo.Montos{
			Efectivo: deref(s.DiferenciaEfectivo),
			Debito:   deref(s.DiferenciaDebito),
			Credito:  deref(s.DiferenciaCredito),
			Pix:      deref(s.DiferenciaPix),
			Otro:     deref(s.DiferenciaOtro),
		},
		DiferenciaTotal: deref(s.DiferenciaTotal),

		MotivoDiferencia: derefStr(s.MotivoDiferencia),
		Observaciones:    derefStr(s.Observaciones),

		TotalVentas:            derefInt(s.TotalVentas),
		MontoTotalVentas:       deref(s.MontoTotalVentas),
		TotalDevoluciones:      derefInt(s.TotalDevoluciones),
		MontoTotalDevoluciones: deref(s.MontoTotalDevoluciones),
		TotalRetiros:           derefInt(s.TotalRetiros),
		MontoTotalRetiros:      deref(s.MontoTotalRetiros),
		TotalRefuerzos:         derefInt(s.TotalRefuerzos),
		MontoTotalRefuerzos:    deref(s.MontoTotalRefuerzos),
	}
}

package worker

// cierre_worker.go
// Processes "sesión cerrada" jobs: loads the sealed session, builds the
// closing report, renders the PDF and mails it to supervision. Strictly a
// consumer of the sealed record — a delivery failure never touches the
// session row, it only reschedules the job.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"novapos/internal/infra"
	"novapos/internal/repository"
	"novapos/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MaxCierreRetries bounds delivery attempts before the job lands in the DLQ.
const MaxCierreRetries = 5

type CierreWorker struct {
	repo       repository.CajaRepository
	pdf        *infra.ReportePDF
	mailer     *infra.Mailer
	cb         *infra.CircuitBreaker
	dispatcher *Dispatcher
	rdb        *redis.Client
	// destinatario is the supervision inbox; empty disables delivery.
	destinatario string
}

func NewCierreWorker(repo repository.CajaRepository, pdf *infra.ReportePDF, mailer *infra.Mailer, cb *infra.CircuitBreaker, dispatcher *Dispatcher, rdb *redis.Client, destinatario string) *CierreWorker {
	return &CierreWorker{
		repo:         repo,
		pdf:          pdf,
		mailer:       mailer,
		cb:           cb,
		dispatcher:   dispatcher,
		rdb:          rdb,
		destinatario: destinatario,
	}
}

// Process handles one cierre notification job.
func (w *CierreWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload CierreJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("cierre_worker: invalid payload")
		return
	}
	if w.destinatario == "" {
		log.Debug().Msg("cierre_worker: no supervision email configured — skipping")
		return
	}

	sesion, err := w.repo.FindSesion(ctx, payload.ComercioID, payload.SesionID)
	if err != nil {
		w.retryOrDLQ(ctx, payload, fmt.Errorf("load sesion: %w", err))
		return
	}

	reporte, err := service.BuildReporteCierre(sesion)
	if err != nil {
		// Not transient: the session is not a sealed cierre. Straight to DLQ.
		w.toDLQ(ctx, payload, fmt.Sprintf("build reporte: %v", err))
		return
	}

	pdfPath, err := w.pdf.RenderReporteCierre(reporte)
	if err != nil {
		w.retryOrDLQ(ctx, payload, fmt.Errorf("render pdf: %w", err))
		return
	}

	subject := fmt.Sprintf("Cierre de caja PDV %d — diferencia %s",
		reporte.PuntoDeVenta, reporte.DiferenciaTotal.StringFixed(2))
	body := fmt.Sprintf(
		"Sesión %s cerrada el %s.\nEsperado total: %s\nDeclarado total: %s\nDiferencia total: %s\nHash: %s\n",
		reporte.SesionID, reporte.ClosedAt,
		reporte.EsperadoTotal.StringFixed(2), reporte.DeclaradoTotal.StringFixed(2),
		reporte.DiferenciaTotal.StringFixed(2), reporte.HashSeguridad)

	sendErr := w.cb.Execute(func() error {
		return w.mailer.SendReporteCierre(w.destinatario, subject, body, pdfPath)
	})
	if sendErr != nil {
		w.retryOrDLQ(ctx, payload, fmt.Errorf("send email: %w", sendErr))
		return
	}

	log.Info().
		Str("sesion_id", payload.SesionID.String()).
		Str("to", w.destinatario).
		Msg("cierre_worker: reporte de cierre enviado")
}

func (w *CierreWorker) retryOrDLQ(ctx context.Context, payload CierreJobPayload, cause error) {
	if payload.Attempt >= MaxCierreRetries {
		w.toDLQ(ctx, payload, fmt.Sprintf("max retries (%d) exceeded: %v", MaxCierreRetries, cause))
		return
	}

	next := payload
	next.Attempt++
	delay := computeRetryBackoff(next.Attempt)
	if err := w.dispatcher.ScheduleRetry(ctx, "cierre_caja", next, delay); err != nil {
		log.Error().Err(err).Str("sesion_id", payload.SesionID.String()).
			Msg("cierre_worker: failed to schedule retry")
		return
	}
	log.Warn().
		Err(cause).
		Str("sesion_id", payload.SesionID.String()).
		Int("attempt", payload.Attempt).
		Dur("retry_in", delay).
		Msg("cierre_worker: delivery failed, retry scheduled")
}

func (w *CierreWorker) toDLQ(ctx context.Context, payload CierreJobPayload, reason string) {
	data, _ := json.Marshal(payload)
	SendToDLQ(ctx, w.rdb, QueueCierre, "cierre_caja", data, reason, payload.Attempt)
}

// computeRetryBackoff: 30s, 1m, 2m, 4m, 8m…
func computeRetryBackoff(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

package arqueo

// sello.go — integrity seal over the frozen cierre record.
//
// The seal is an unkeyed SHA-256 over a canonical serialization: sorted
// key=value lines, decimals fixed to two digits, timestamps RFC3339 UTC,
// free-text fields quoted so the encoding stays one line per field.
// Identical snapshots always produce the identical hash; changing any field
// by one cent (or even its precision) changes it.
//
// This is tamper DETECTION, not authentication: anyone who can rewrite the
// row can also rewrite the hash. It is not a MAC and takes no secret — do
// not treat it as one.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotCierre carries exactly the fields frozen at cierre time.
// Anything mutable after the close (nothing, today) must stay out.
type SnapshotCierre struct {
	SesionID     uuid.UUID
	ComercioID   uuid.UUID
	PuntoDeVenta int
	AbiertaPorID uuid.UUID
	CerradaPorID uuid.UUID
	OpenedAt     time.Time
	ClosedAt     time.Time

	MontoInicial    decimal.Decimal
	Esperado        Montos
	Declarado       Montos
	Diferencia      Montos
	DiferenciaTotal decimal.Decimal

	MotivoDiferencia string
	Observaciones    string

	TotalVentas            int
	MontoTotalVentas       decimal.Decimal
	TotalDevoluciones      int
	MontoTotalDevoluciones decimal.Decimal
	TotalRetiros           int
	MontoTotalRetiros      decimal.Decimal
	TotalRefuerzos         int
	MontoTotalRefuerzos    decimal.Decimal
}

// Sellar returns the hex-encoded SHA-256 seal of the snapshot.
func Sellar(s SnapshotCierre) string {
	sum := sha256.Sum256([]byte(Canonico(s)))
	return hex.EncodeToString(sum[:])
}

// Canonico builds the canonical serialization the seal is computed over.
// Exposed so cmd/verificarsello can show what was hashed.
func Canonico(s SnapshotCierre) string {
	campos := map[string]string{
		"sesion_id":      s.SesionID.String(),
		"comercio_id":    s.ComercioID.String(),
		"punto_de_venta": fmt.Sprintf("%d", s.PuntoDeVenta),
		"abierta_por":    s.AbiertaPorID.String(),
		"cerrada_por":    s.CerradaPorID.String(),
		"opened_at":      s.OpenedAt.UTC().Format(time.RFC3339),
		"closed_at":      s.ClosedAt.UTC().Format(time.RFC3339),

		"monto_inicial":    s.MontoInicial.StringFixed(2),
		"diferencia_total": s.DiferenciaTotal.StringFixed(2),
		// Free text is quoted so an embedded newline cannot forge extra
		// key=value lines; every other field has a fixed newline-free format.
		"motivo_diferencia": strconv.Quote(s.MotivoDiferencia),
		"observaciones":     strconv.Quote(s.Observaciones),

		"total_ventas":             fmt.Sprintf("%d", s.TotalVentas),
		"monto_total_ventas":       s.MontoTotalVentas.StringFixed(2),
		"total_devoluciones":       fmt.Sprintf("%d", s.TotalDevoluciones),
		"monto_total_devoluciones": s.MontoTotalDevoluciones.StringFixed(2),
		"total_retiros":            fmt.Sprintf("%d", s.TotalRetiros),
		"monto_total_retiros":      s.MontoTotalRetiros.StringFixed(2),
		"total_refuerzos":          fmt.Sprintf("%d", s.TotalRefuerzos),
		"monto_total_refuerzos":    s.MontoTotalRefuerzos.StringFixed(2),
	}
	agregarMontos(campos, "esperado", s.Esperado)
	agregarMontos(campos, "declarado", s.Declarado)
	agregarMontos(campos, "diferencia", s.Diferencia)

	claves := make([]string, 0, len(campos))
	for k := range campos {
		claves = append(claves, k)
	}
	sort.Strings(claves)

	var b strings.Builder
	for _, k := range claves {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(campos[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func agregarMontos(campos map[string]string, prefijo string, m Montos) {
	campos[prefijo+"_efectivo"] = m.Efectivo.StringFixed(2)
	campos[prefijo+"_debito"] = m.Debito.StringFixed(2)
	campos[prefijo+"_credito"] = m.Credito.StringFixed(2)
	campos[prefijo+"_pix"] = m.Pix.StringFixed(2)
	campos[prefijo+"_otro"] = m.Otro.StringFixed(2)
}

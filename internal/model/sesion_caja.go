package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session states. Cerrada is terminal: a closed session is never mutated
// again — any administrative correction is a separate audited event, never an
// update of this row.
const (
	EstadoAbierta = "abierta"
	EstadoCerrada = "cerrada"
)

// Payment methods tracked separately during the arqueo.
const (
	MetodoEfectivo = "efectivo"
	MetodoDebito   = "debito"
	MetodoCredito  = "credito"
	MetodoPix      = "pix"
	MetodoOtro     = "otro"
)

// Metodos lists every tender type in canonical order.
var Metodos = []string{MetodoEfectivo, MetodoDebito, MetodoCredito, MetodoPix, MetodoOtro}

// SesionCaja is the lifecycle of a cash register session, from apertura to
// the sealed cierre. Every Declarado*/Esperado*/Diferencia* column, the
// aggregate snapshot and HashSeguridad are NULL while the session is abierta
// and are all written atomically, together with the estado flip, on cierre.
//
// A partial unique index on (comercio_id, punto_de_venta) WHERE estado =
// 'abierta' guarantees at most one open session per register even under
// concurrent aperturas (see infra/database.go).
type SesionCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ComercioID   uuid.UUID `gorm:"type:uuid;not null;index:idx_sesiones_comercio_pdv"`
	PuntoDeVenta int       `gorm:"not null;index:idx_sesiones_comercio_pdv"`
	Estado       string    `gorm:"type:varchar(20);not null;default:'abierta'"`

	AbiertaPorID uuid.UUID  `gorm:"type:uuid;not null"`
	CerradaPorID *uuid.UUID `gorm:"type:uuid"`

	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// Operator-counted amounts, declared at cierre.
	DeclaradoEfectivo *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaradoDebito   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaradoCredito  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaradoPix      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaradoOtro     *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// System-computed amounts from the sales ledger over [OpenedAt, cierre].
	EsperadoEfectivo *decimal.Decimal `gorm:"type:decimal(12,2)"`
	EsperadoDebito   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	EsperadoCredito  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	EsperadoPix      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	EsperadoOtro     *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// Diferencia<Metodo> = Declarado<Metodo> - Esperado<Metodo> (signed:
	// positive = sobrante, negative = faltante).
	DiferenciaEfectivo *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaDebito   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaCredito  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaPix      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaOtro     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiferenciaTotal    *decimal.Decimal `gorm:"type:decimal(12,2)"`

	MotivoDiferencia *string
	Observaciones    *string

	// Aggregate snapshot frozen at cierre.
	TotalVentas            *int             `gorm:"type:int"`
	MontoTotalVentas       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalDevoluciones      *int             `gorm:"type:int"`
	MontoTotalDevoluciones *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalRetiros           *int             `gorm:"type:int"`
	MontoTotalRetiros      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalRefuerzos         *int             `gorm:"type:int"`
	MontoTotalRefuerzos    *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// HashSeguridad is the SHA-256 seal over the frozen cierre fields.
	// Written once on cierre, never recomputed.
	HashSeguridad *string `gorm:"type:varchar(64)"`

	OpenedAt  time.Time
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

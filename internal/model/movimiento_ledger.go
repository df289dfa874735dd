package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger movement types. Ventas and devoluciones carry a metodo_pago;
// retiros and refuerzos are physical cash only.
const (
	LedgerVenta      = "venta"
	LedgerDevolucion = "devolucion"
	LedgerRetiro     = "retiro"
	LedgerRefuerzo   = "refuerzo"
)

// MovimientoLedger is the read-only row shape of the sales ledger, owned by
// the sales subsystem. This core only aggregates over it at cierre time —
// never writes, never pre-aggregates incrementally, so late corrections made
// before the cierre are always picked up.
type MovimientoLedger struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ComercioID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_comercio_pdv"`
	PuntoDeVenta int             `gorm:"not null;index:idx_ledger_comercio_pdv"`
	Tipo         string          `gorm:"type:varchar(20);not null"`
	MetodoPago   *string         `gorm:"type:varchar(20)"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ReferenciaID links to the originating venta or manual operation.
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"index"`
}

func (MovimientoLedger) TableName() string { return "movimientos_ledger" }

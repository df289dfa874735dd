package repository

import (
	"context"
	"time"

	"novapos/internal/arqueo"
	"novapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerRepository is the read adapter over the sales ledger, the external
// system of record for what happened during a session. It is queried at
// cierre time over the full [opened_at, now] window — never pre-aggregated
// incrementally — so retroactive corrections made before the cierre are
// always reflected.
//
// It only reads. Failures bubble up raw so the service can refuse to close:
// closing with silently-zero expected amounts would mask real faltantes.
type LedgerRepository interface {
	TotalesPorVentana(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int, desde, hasta time.Time) (*arqueo.TotalesLedger, error)
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) TotalesPorVentana(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int, desde, hasta time.Time) (*arqueo.TotalesLedger, error) {
	var filas []struct {
		Tipo       string
		MetodoPago *string
		Cantidad   int
		Monto      decimal.Decimal
	}

	err := r.db.WithContext(ctx).
		Model(&model.MovimientoLedger{}).
		Select("tipo, metodo_pago, COUNT(*) AS cantidad, COALESCE(SUM(monto), 0) AS monto").
		Where("comercio_id = ? AND punto_de_venta = ? AND created_at >= ? AND created_at < ?",
			comercioID, puntoDeVenta, desde, hasta).
		Group("tipo, metodo_pago").
		Scan(&filas).Error
	if err != nil {
		return nil, err
	}

	t := &arqueo.TotalesLedger{}
	for _, f := range filas {
		switch f.Tipo {
		case model.LedgerVenta:
			t.CantVentas += f.Cantidad
			sumarMetodo(&t.Ventas, f.MetodoPago, f.Monto)
		case model.LedgerDevolucion:
			t.CantDevoluciones += f.Cantidad
			sumarMetodo(&t.Devoluciones, f.MetodoPago, f.Monto)
		case model.LedgerRetiro:
			t.CantRetiros += f.Cantidad
			t.MontoRetiros = t.MontoRetiros.Add(f.Monto)
		case model.LedgerRefuerzo:
			t.CantRefuerzos += f.Cantidad
			t.MontoRefuerzos = t.MontoRefuerzos.Add(f.Monto)
		}
	}
	return t, nil
}

// sumarMetodo buckets a ventas/devoluciones sum into the matching tender.
// Rows with no metodo_pago count as "otro".
func sumarMetodo(m *arqueo.Montos, metodo *string, monto decimal.Decimal) {
	met := model.MetodoOtro
	if metodo != nil {
		met = *metodo
	}
	switch met {
	case model.MetodoEfectivo:
		m.Efectivo = m.Efectivo.Add(monto)
	case model.MetodoDebito:
		m.Debito = m.Debito.Add(monto)
	case model.MetodoCredito:
		m.Credito = m.Credito.Add(monto)
	case model.MetodoPix:
		m.Pix = m.Pix.Add(monto)
	default:
		m.Otro = m.Otro.Add(monto)
	}
}

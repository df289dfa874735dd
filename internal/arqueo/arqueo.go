// Package arqueo implements the pure computations of the cash register
// cierre: expected amounts per payment method, signed differences against the
// operator's declaration, and the integrity seal over the frozen record.
//
// Everything here is side-effect free. All money flows through
// shopspring/decimal — rounding happens only at presentation boundaries
// (report, PDF, canonical hash serialization).
package arqueo

import (
	"github.com/shopspring/decimal"

	"novapos/internal/model"
)

// Montos holds one value per payment method.
type Montos struct {
	Efectivo decimal.Decimal
	Debito   decimal.Decimal
	Credito  decimal.Decimal
	Pix      decimal.Decimal
	Otro     decimal.Decimal
}

// Total sums every method.
func (m Montos) Total() decimal.Decimal {
	return m.Efectivo.Add(m.Debito).Add(m.Credito).Add(m.Pix).Add(m.Otro)
}

// PorMetodo returns the value for a tender type name.
func (m Montos) PorMetodo(metodo string) decimal.Decimal {
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

// TotalesLedger is the aggregated activity of a session window, as returned
// by the ledger adapter. Retiros and refuerzos are physical cash movements
// and carry no payment method.
type TotalesLedger struct {
	Ventas       Montos
	Devoluciones Montos

	MontoRetiros   decimal.Decimal
	MontoRefuerzos decimal.Decimal

	CantVentas       int
	CantDevoluciones int
	CantRetiros      int
	CantRefuerzos    int
}

// TieneActividad reports whether the ledger recorded any movement for the
// given tender during the window. Cash additionally counts retiros and
// refuerzos as activity.
func (t TotalesLedger) TieneActividad(metodo string) bool {
	if !t.Ventas.PorMetodo(metodo).IsZero() || !t.Devoluciones.PorMetodo(metodo).IsZero() {
		return true
	}
	if metodo == model.MetodoEfectivo {
		return !t.MontoRetiros.IsZero() || !t.MontoRefuerzos.IsZero()
	}
	return false
}

// Resultado is the outcome of a cierre computation.
type Resultado struct {
	Esperado   Montos
	Declarado  Montos
	Diferencia Montos
	// DiferenciaTotal = sum of per-method differences. Positive = sobrante,
	// negative = faltante.
	DiferenciaTotal decimal.Decimal
}

// Calcular computes expected amounts and signed differences.
//
//	esperado efectivo  = montoInicial + ventas - devoluciones - retiros + refuerzos
//	esperado no-cash   = ventas - devoluciones
//	diferencia         = declarado - esperado
//
// Retiros and refuerzos only touch efectivo: electronic tenders have no
// physical drawer to take from or add to.
func Calcular(montoInicial decimal.Decimal, totales TotalesLedger, declarado Montos) Resultado {
	esperado := Montos{
		Efectivo: montoInicial.
			Add(totales.Ventas.Efectivo).
			Sub(totales.Devoluciones.Efectivo).
			Sub(totales.MontoRetiros).
			Add(totales.MontoRefuerzos),
		Debito:  totales.Ventas.Debito.Sub(totales.Devoluciones.Debito),
		Credito: totales.Ventas.Credito.Sub(totales.Devoluciones.Credito),
		Pix:     totales.Ventas.Pix.Sub(totales.Devoluciones.Pix),
		Otro:    totales.Ventas.Otro.Sub(totales.Devoluciones.Otro),
	}

	diferencia := Montos{
		Efectivo: declarado.Efectivo.Sub(esperado.Efectivo),
		Debito:   declarado.Debito.Sub(esperado.Debito),
		Credito:  declarado.Credito.Sub(esperado.Credito),
		Pix:      declarado.Pix.Sub(esperado.Pix),
		Otro:     declarado.Otro.Sub(esperado.Otro),
	}

	return Resultado{
		Esperado:        esperado,
		Declarado:       declarado,
		Diferencia:      diferencia,
		DiferenciaTotal: diferencia.Total(),
	}
}

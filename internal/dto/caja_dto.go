package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	PuntoDeVenta int             `json:"punto_de_venta" validate:"required,min=1"`
	MontoInicial decimal.Decimal `json:"monto_inicial"  validate:"min=0"`
}

// DeclaracionCierre carries the operator-counted amount per payment method.
// Pointers distinguish "not declared" from "counted zero": a tender with
// ledger activity must be declared explicitly, even as 0.00.
type DeclaracionCierre struct {
	Efectivo *decimal.Decimal `json:"efectivo" validate:"omitempty,min=0"`
	Debito   *decimal.Decimal `json:"debito"   validate:"omitempty,min=0"`
	Credito  *decimal.Decimal `json:"credito"  validate:"omitempty,min=0"`
	Pix      *decimal.Decimal `json:"pix"      validate:"omitempty,min=0"`
	Otro     *decimal.Decimal `json:"otro"     validate:"omitempty,min=0"`
}

type CerrarCajaRequest struct {
	Declaracion      DeclaracionCierre `json:"declaracion"       validate:"required"`
	MotivoDiferencia *string           `json:"motivo_diferencia"`
	Observaciones    *string           `json:"observaciones"`
}

type ListarSesionesFiltro struct {
	PuntoDeVenta *int   `form:"punto_de_venta"`
	Estado       string `form:"estado" validate:"omitempty,oneof=abierta cerrada"`
	Limit        int    `form:"limit"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MontosPorMetodo struct {
	Efectivo decimal.Decimal `json:"efectivo"`
	Debito   decimal.Decimal `json:"debito"`
	Credito  decimal.Decimal `json:"credito"`
	Pix      decimal.Decimal `json:"pix"`
	Otro     decimal.Decimal `json:"otro"`
	Total    decimal.Decimal `json:"total"`
}

type SesionCajaResponse struct {
	ID           string `json:"id"`
	ComercioID   string `json:"comercio_id"`
	PuntoDeVenta int    `json:"punto_de_venta"`
	Estado       string `json:"estado"`

	AbiertaPor string  `json:"abierta_por"`
	CerradaPor *string `json:"cerrada_por,omitempty"`

	MontoInicial decimal.Decimal `json:"monto_inicial"`

	// Set only on sessions already cerradas.
	Esperado        *MontosPorMetodo `json:"esperado,omitempty"`
	Declarado       *MontosPorMetodo `json:"declarado,omitempty"`
	Diferencia      *MontosPorMetodo `json:"diferencia,omitempty"`
	DiferenciaTotal *decimal.Decimal `json:"diferencia_total,omitempty"`

	MotivoDiferencia *string `json:"motivo_diferencia,omitempty"`
	Observaciones    *string `json:"observaciones,omitempty"`

	Totales       *TotalesSesion `json:"totales,omitempty"`
	HashSeguridad *string        `json:"hash_seguridad,omitempty"`

	OpenedAt string  `json:"opened_at"`
	ClosedAt *string `json:"closed_at,omitempty"`
}

// TotalesSesion is the aggregate snapshot captured at cierre.
type TotalesSesion struct {
	Ventas            int             `json:"ventas"`
	MontoVentas       decimal.Decimal `json:"monto_ventas"`
	Devoluciones      int             `json:"devoluciones"`
	MontoDevoluciones decimal.Decimal `json:"monto_devoluciones"`
	Retiros           int             `json:"retiros"`
	MontoRetiros      decimal.Decimal `json:"monto_retiros"`
	Refuerzos         int             `json:"refuerzos"`
	MontoRefuerzos    decimal.Decimal `json:"monto_refuerzos"`
}

// ─── Closing report ──────────────────────────────────────────────────────────

// FilaReporte is one row of the per-tender breakdown table.
type FilaReporte struct {
	Metodo     string          `json:"metodo"`
	Esperado   decimal.Decimal `json:"esperado"`
	Declarado  decimal.Decimal `json:"declarado"`
	Diferencia decimal.Decimal `json:"diferencia"`
}

// ReporteCierreResponse is the structured closing document for print/export.
// It is assembled read-only from the sealed session — nothing is recomputed
// here, so the document always matches what the seal covers.
type ReporteCierreResponse struct {
	SesionID     string `json:"sesion_id"`
	ComercioID   string `json:"comercio_id"`
	PuntoDeVenta int    `json:"punto_de_venta"`
	AbiertaPor   string `json:"abierta_por"`
	CerradaPor   string `json:"cerrada_por"`
	OpenedAt     string `json:"opened_at"`
	// ClosedAt is the ledger snapshot timestamp: sales posted after it belong
	// to the next session.
	ClosedAt string `json:"closed_at"`

	MontoInicial decimal.Decimal `json:"monto_inicial"`
	Desglose     []FilaReporte   `json:"desglose"`

	EsperadoTotal   decimal.Decimal `json:"esperado_total"`
	DeclaradoTotal  decimal.Decimal `json:"declarado_total"`
	DiferenciaTotal decimal.Decimal `json:"diferencia_total"`

	MotivoDiferencia *string `json:"motivo_diferencia,omitempty"`
	Observaciones    *string `json:"observaciones,omitempty"`

	Totales       TotalesSesion `json:"totales"`
	HashSeguridad string        `json:"hash_seguridad"`
	GeneradoEn    string        `json:"generado_en"`
}

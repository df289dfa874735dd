package repository

import (
	"context"
	"errors"

	"novapos/internal/apierror"
	"novapos/internal/dto"
	"novapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxSesionesListado caps list responses regardless of the requested limit.
const MaxSesionesListado = 100

type CajaRepository interface {
	// CreateSesion inserts a new sesión abierta. The partial unique index
	// uq_sesiones_caja_abierta turns a concurrent duplicate apertura into a
	// conflict error — check-then-insert alone would race.
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesion(ctx context.Context, comercioID, id uuid.UUID) (*model.SesionCaja, error)
	FindSesionAbiertaPorPDV(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int) (*model.SesionCaja, error)
	ListSesiones(ctx context.Context, comercioID uuid.UUID, f dto.ListarSesionesFiltro) ([]model.SesionCaja, error)
	// CerrarSesion writes every cierre field and the estado flip in a single
	// guarded UPDATE (estado = 'abierta'). Exactly one of two concurrent
	// closers wins; the loser gets a state error.
	CerrarSesion(ctx context.Context, s *model.SesionCaja) error
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierror.Conflict("Ya existe una caja abierta en este punto de venta")
	}
	if err != nil {
		return apierror.Dependency("No se pudo crear la sesión de caja", err)
	}
	return nil
}

func (r *cajaRepo) FindSesion(ctx context.Context, comercioID, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("id = ? AND comercio_id = ?", id, comercioID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NotFound("Sesión de caja no encontrada")
	}
	if err != nil {
		return nil, apierror.Dependency("No se pudo leer la sesión de caja", err)
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionAbiertaPorPDV(ctx context.Context, comercioID uuid.UUID, puntoDeVenta int) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("comercio_id = ? AND punto_de_venta = ? AND estado = ?", comercioID, puntoDeVenta, model.EstadoAbierta).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NotFound("Sin sesión abierta en este punto de venta")
	}
	if err != nil {
		return nil, apierror.Dependency("No se pudo leer la sesión de caja", err)
	}
	return &s, nil
}

func (r *cajaRepo) ListSesiones(ctx context.Context, comercioID uuid.UUID, f dto.ListarSesionesFiltro) ([]model.SesionCaja, error) {
	limit := f.Limit
	if limit <= 0 || limit > MaxSesionesListado {
		limit = MaxSesionesListado
	}

	q := r.db.WithContext(ctx).Where("comercio_id = ?", comercioID)
	if f.PuntoDeVenta != nil {
		q = q.Where("punto_de_venta = ?", *f.PuntoDeVenta)
	}
	if f.Estado != "" {
		q = q.Where("estado = ?", f.Estado)
	}

	var sesiones []model.SesionCaja
	if err := q.Order("opened_at DESC").Limit(limit).Find(&sesiones).Error; err != nil {
		return nil, apierror.Dependency("No se pudo listar las sesiones de caja", err)
	}
	return sesiones, nil
}

// cierreColumns are the exact columns written on cierre. Listing them
// explicitly forces gorm to persist zero values too — a 0.00 difference is a
// value, not an omission.
var cierreColumns = []string{
	"estado", "cerrada_por_id", "closed_at",
	"declarado_efectivo", "declarado_debito", "declarado_credito", "declarado_pix", "declarado_otro",
	"esperado_efectivo", "esperado_debito", "esperado_credito", "esperado_pix", "esperado_otro",
	"diferencia_efectivo", "diferencia_debito", "diferencia_credito", "diferencia_pix", "diferencia_otro",
	"diferencia_total", "motivo_diferencia", "observaciones",
	"total_ventas", "monto_total_ventas",
	"total_devoluciones", "monto_total_devoluciones",
	"total_retiros", "monto_total_retiros",
	"total_refuerzos", "monto_total_refuerzos",
	"hash_seguridad", "updated_at",
}

func (r *cajaRepo) CerrarSesion(ctx context.Context, s *model.SesionCaja) error {
	res := r.db.WithContext(ctx).
		Model(&model.SesionCaja{}).
		Where("id = ? AND comercio_id = ? AND estado = ?", s.ID, s.ComercioID, model.EstadoAbierta).
		Select(cierreColumns).
		Updates(s)
	if res.Error != nil {
		return apierror.Dependency("No se pudo cerrar la sesión de caja", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the compare-and-swap: either the row is gone or another closer
		// beat us to it.
		if _, err := r.FindSesion(ctx, s.ComercioID, s.ID); err != nil {
			return err
		}
		return apierror.State("La sesión ya está cerrada")
	}
	return nil
}

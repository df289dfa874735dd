package infra

import (
	"fmt"

	"novapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// over the fixed schema, then applies the idempotent SQL patches GORM cannot
// express (partial unique indexes). The schema contract is known at build
// time: if a migration fails we fail fast at startup instead of probing and
// adapting at runtime.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Translate driver errors so a duplicate-key insert surfaces as
		// gorm.ErrDuplicatedKey — the repository depends on this to turn the
		// apertura race into a conflict.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.SesionCaja{},
		&model.MovimientoLedger{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot produce.
// Each statement is guarded so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one sesión abierta per (comercio, punto de venta): a
		// partial unique index makes concurrent duplicate aperturas lose at
		// INSERT time, not at an application-level check.
		{"partial unique index for open sessions", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_sesiones_caja_abierta') THEN
    CREATE UNIQUE INDEX uq_sesiones_caja_abierta
        ON sesiones_caja (comercio_id, punto_de_venta)
        WHERE estado = 'abierta';
  END IF;
END $$`},
		// Cierre reads aggregate the window [opened_at, now) per register.
		{"ledger window index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ledger_ventana') THEN
    CREATE INDEX idx_ledger_ventana
        ON movimientos_ledger (comercio_id, punto_de_venta, created_at);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

// RunMigrations applies the schema for integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.SesionCaja{},
		&model.MovimientoLedger{},
	); err != nil {
		return err
	}
	return applySchemaPatches(db)
}

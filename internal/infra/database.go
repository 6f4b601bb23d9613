package infra

import (
	"fmt"

	"cobranzas/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date via RunMigrations.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates the documentos table and applies the expression
// indexes AutoMigrate cannot express. Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Documento{}); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL for the JSONB access paths used by the
// live queries: operational date ranges, demo loans and closings lookups.
// Each statement uses IF NOT EXISTS so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"idx_documentos_operational_date", `
CREATE INDEX IF NOT EXISTS idx_documentos_operational_date
    ON documentos (tenant_id, coleccion, (datos->>'operationalDate'))`},
		{"idx_documentos_fecha_inicio", `
CREATE INDEX IF NOT EXISTS idx_documentos_fecha_inicio
    ON documentos (tenant_id, grupo, (datos->>'fechaInicio'))
    WHERE datos->>'source' = 'demo'`},
		{"idx_documentos_admin", `
CREATE INDEX IF NOT EXISTS idx_documentos_admin
    ON documentos (tenant_id, coleccion, (datos->>'admin'))`},
		{"idx_documentos_datos_gin", `
CREATE INDEX IF NOT EXISTS idx_documentos_datos_gin
    ON documentos USING GIN (datos jsonb_path_ops)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

package model

import (
	"strings"
	"time"
)

// Documento is one loosely typed record of the document store. Coleccion is the
// full collection path ("cajaDiaria", "cierres/{tenant}/{yyyymmdd}",
// "tenants/{tenant}/auditLogs"); Grupo is its last segment and backs
// collection-group queries. Datos keeps the writer's fields verbatim.
// Documents are immutable once written: corrections are new documents.
type Documento struct {
	Coleccion string         `gorm:"type:text;primaryKey" json:"coleccion"`
	ID        string         `gorm:"type:varchar(128);primaryKey" json:"id"`
	Grupo     string         `gorm:"type:varchar(64);not null;index:idx_documentos_grupo_tenant,priority:1" json:"grupo"`
	TenantID  string         `gorm:"type:varchar(64);not null;index:idx_documentos_grupo_tenant,priority:2" json:"tenantId"`
	Datos     map[string]any `gorm:"type:jsonb;serializer:json;not null" json:"datos"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (Documento) TableName() string { return "documentos" }

// GrupoDe returns the collection-group name of a collection path.
func GrupoDe(coleccion string) string {
	coleccion = strings.Trim(coleccion, "/")
	if i := strings.LastIndex(coleccion, "/"); i >= 0 {
		return coleccion[i+1:]
	}
	return coleccion
}

// Collection paths.
const (
	ColeccionCajaDiaria = "cajaDiaria"
	ColeccionPrestamos  = "prestamos"
	ColeccionAuditLogs  = "auditLogs"
)

// ColeccionCierres is the closings collection of one tenant and day; the
// document id is the actor (or "—" when the closing has no actor).
func ColeccionCierres(tenantID, yyyymmdd string) string {
	return "cierres/" + tenantID + "/" + yyyymmdd
}

// ColeccionAuditLogsTenant is the per-tenant audit log collection.
func ColeccionAuditLogsTenant(tenantID string) string {
	return "tenants/" + tenantID + "/" + ColeccionAuditLogs
}

// ActorSinNombre is the closing document id used when no actor is known.
const ActorSinNombre = "—"

// Package caja holds the cash aggregation engine: kind normalization, daily
// accumulation, opening-balance carry-forward and the closing formula.
// Everything here is pure except the carry-forward lookback, which is injected.
package caja

import "strings"

// Tipo is the canonical cash-event kind used by the closing formula.
type Tipo string

const (
	TipoApertura Tipo = "apertura" // opening
	TipoAbono    Tipo = "abono"    // collection
	TipoGasto    Tipo = "gasto"    // admin-level expense only
	TipoIngreso  Tipo = "ingreso"  // incoming transfer
	TipoRetiro   Tipo = "retiro"   // outgoing transfer
	TipoPrestamo Tipo = "prestamo" // loan disbursement
)

// Tipos lists the canonical kinds in presentation order.
var Tipos = []Tipo{TipoApertura, TipoAbono, TipoPrestamo, TipoGasto, TipoIngreso, TipoRetiro}

// Raw kinds with business meaning outside the formula.
const (
	TipoRealGastoAdmin    = "gasto_admin"
	TipoRealGastoCobrador = "gasto_cobrador"
)

// NormalizarTipoReal trims and lowercases a raw kind string.
func NormalizarTipoReal(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Normalizar maps a raw kind to its canonical kind. The second return value is
// false for kinds that do not take part in the cash formula (gasto_cobrador
// included). It is the only kind classifier in the system.
func Normalizar(raw string) (Tipo, bool) {
	v := NormalizarTipoReal(raw)
	switch {
	case v == "apertura":
		return TipoApertura, true
	case v == "abono":
		return TipoAbono, true
	case v == TipoRealGastoAdmin:
		return TipoGasto, true
	case strings.HasPrefix(v, "ingreso"):
		return TipoIngreso, true
	case strings.HasPrefix(v, "retiro"):
		return TipoRetiro, true
	case v == "prestamo":
		return TipoPrestamo, true
	}
	return "", false
}

// TipoAuditoria is the audit-trail classification. It is wider than Tipo:
// collector expenses, user and configuration changes have their own rows.
type TipoAuditoria string

const (
	AuditoriaCobro         TipoAuditoria = "cobro"
	AuditoriaPrestamo      TipoAuditoria = "prestamo"
	AuditoriaGastoAdmin    TipoAuditoria = "gasto_admin"
	AuditoriaGastoCobrador TipoAuditoria = "gasto_cobrador"
	AuditoriaIngreso       TipoAuditoria = "ingreso"
	AuditoriaRetiro        TipoAuditoria = "retiro"
	AuditoriaApertura      TipoAuditoria = "apertura"
	AuditoriaUsuario       TipoAuditoria = "usuario"
	AuditoriaConfig        TipoAuditoria = "config"
	AuditoriaOtro          TipoAuditoria = "otro"
)

var auditoriaPorTipo = map[Tipo]TipoAuditoria{
	TipoAbono:    AuditoriaCobro,
	TipoPrestamo: AuditoriaPrestamo,
	TipoGasto:    AuditoriaGastoAdmin,
	TipoIngreso:  AuditoriaIngreso,
	TipoRetiro:   AuditoriaRetiro,
	TipoApertura: AuditoriaApertura,
}

// ClasificarAuditoria classifies a raw kind for the audit trail. Cash kinds go
// through Normalizar first; the remaining vocabulary is audit-only.
func ClasificarAuditoria(raw string) TipoAuditoria {
	if t, ok := Normalizar(raw); ok {
		return auditoriaPorTipo[t]
	}
	v := NormalizarTipoReal(raw)
	switch {
	case v == "cobro":
		return AuditoriaCobro
	case v == TipoRealGastoCobrador:
		return AuditoriaGastoCobrador
	case v == "usuario" || strings.Contains(v, "user"):
		return AuditoriaUsuario
	case strings.Contains(v, "config") || strings.Contains(v, "rule"):
		return AuditoriaConfig
	}
	return AuditoriaOtro
}

// EsTipoAuditoria reports whether s names a known audit classification.
func EsTipoAuditoria(s string) bool {
	switch TipoAuditoria(s) {
	case AuditoriaCobro, AuditoriaPrestamo, AuditoriaGastoAdmin, AuditoriaGastoCobrador,
		AuditoriaIngreso, AuditoriaRetiro, AuditoriaApertura, AuditoriaUsuario,
		AuditoriaConfig, AuditoriaOtro:
		return true
	}
	return false
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// Filtros are the parameters shared by every dashboard view. TenantID comes
// from the JWT claims, never from the query string.
type Filtros struct {
	TenantID   string `form:"-"           json:"-"                     validate:"required"`
	Desde      string `form:"desde"       json:"desde"                 validate:"required,datetime=2006-01-02"`
	Hasta      string `form:"hasta"       json:"hasta"                 validate:"required,datetime=2006-01-02"`
	RutaID     string `form:"ruta_id"     json:"ruta_id,omitempty"     validate:"omitempty,max=64"`
	CobradorID string `form:"cobrador_id" json:"cobrador_id,omitempty" validate:"omitempty,max=128"`
}

type RutasParams struct {
	Filtros
	Orden string `form:"orden" json:"orden" validate:"omitempty,oneof=score cobrado caja prestado gastos"`
}

type AuditoriaParams struct {
	Filtros
	Tipo string `form:"tipo" json:"tipo" validate:"omitempty,oneof=all cobro prestamo gasto_admin gasto_cobrador ingreso retiro apertura usuario config otro"`
}

// MorosidadParams has no date window: delinquency is a point-in-time view.
type MorosidadParams struct {
	TenantID   string `form:"-"           json:"-"                     validate:"required"`
	RutaID     string `form:"ruta_id"     json:"ruta_id,omitempty"     validate:"omitempty,max=64"`
	CobradorID string `form:"cobrador_id" json:"cobrador_id,omitempty" validate:"omitempty,max=128"`
	Top        int    `form:"top"         json:"top"                   validate:"omitempty,min=1,max=100"`
}

// ─── Emission envelope ───────────────────────────────────────────────────────

// Estado wraps every view emission. Datos holds the last computed value even
// when Error is set.
type Estado[T any] struct {
	Datos    T      `json:"datos"`
	Cargando bool   `json:"cargando"`
	Error    string `json:"error,omitempty"`
}

// ─── Caja ────────────────────────────────────────────────────────────────────

type MovimientoRow struct {
	ID            string          `json:"id"`
	Tipo          string          `json:"tipo"`
	TipoReal      string          `json:"tipo_real"`
	Monto         decimal.Decimal `json:"monto"`
	Dia           string          `json:"dia"`
	RutaID        string          `json:"ruta_id,omitempty"`
	CobradorID    string          `json:"cobrador_id,omitempty"`
	ClienteID     string          `json:"cliente_id,omitempty"`
	ClienteNombre string          `json:"cliente_nombre,omitempty"`
	PrestamoID    string          `json:"prestamo_id,omitempty"`
	Nota          string          `json:"nota,omitempty"`
	CreadoEn      *time.Time      `json:"creado_en,omitempty"`
	Demo          bool            `json:"demo,omitempty"`
}

type Totales struct {
	Inicial   decimal.Decimal `json:"inicial"`
	Cobrado   decimal.Decimal `json:"cobrado"`
	Prestado  decimal.Decimal `json:"prestado"`
	Gastos    decimal.Decimal `json:"gastos"`
	Ingresos  decimal.Decimal `json:"ingresos"`
	Retiros   decimal.Decimal `json:"retiros"`
	CajaFinal decimal.Decimal `json:"caja_final"`
}

type DiaCaja struct {
	Dia string `json:"dia"`
	Totales
	Apertura    decimal.Decimal `json:"apertura"`
	Movimientos int             `json:"movimientos"`
}

type CajaResumen struct {
	Totales
	// PorDia is the amount collected per operational day.
	PorDia  map[string]decimal.Decimal `json:"por_dia"`
	PorTipo map[string]decimal.Decimal `json:"por_tipo"`
	Dias    []DiaCaja                  `json:"dias"`
}

type CajaSnapshot struct {
	Movimientos []MovimientoRow `json:"movimientos"`
	Resumen     CajaResumen     `json:"resumen"`
}

// ─── Cierres ─────────────────────────────────────────────────────────────────

type CierreCobrador struct {
	CobradorID string `json:"cobrador_id"`
	Totales
	Movimientos int `json:"movimientos"`
}

type CierreDia struct {
	Dia string `json:"dia"`
	Totales
	Movimientos int              `json:"movimientos"`
	Cobradores  []CierreCobrador `json:"cobradores"`
}

type CierresSnapshot struct {
	Desde string `json:"desde"`
	Hasta string `json:"hasta"`
	// Dias is sorted newest first.
	Dias []CierreDia `json:"dias"`
}

// ─── Rutas ───────────────────────────────────────────────────────────────────

type RutaRow struct {
	RutaID     string `json:"ruta_id,omitempty"`
	CobradorID string `json:"cobrador_id,omitempty"`
	Etiqueta   string `json:"etiqueta"`
	Totales
	Apertura    decimal.Decimal `json:"apertura"`
	Movimientos int             `json:"movimientos"`
	Score       decimal.Decimal `json:"score"`
}

// ─── Alertas ─────────────────────────────────────────────────────────────────

type Alerta struct {
	ID         string         `json:"id"`
	Tipo       string         `json:"tipo"`      // cierre_faltante | promesa_vencida
	Severidad  string         `json:"severidad"` // high | medium | low
	Fecha      string         `json:"fecha"`
	Mensaje    string         `json:"mensaje"`
	CobradorID string         `json:"cobrador_id,omitempty"`
	RutaID     string         `json:"ruta_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ─── Auditoría ───────────────────────────────────────────────────────────────

type AuditoriaRow struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	Tipo          string           `json:"tipo"`
	Ts            int64            `json:"ts"`
	Fecha         string           `json:"fecha"`
	CobradorID    string           `json:"cobrador_id,omitempty"`
	RutaID        string           `json:"ruta_id,omitempty"`
	ClienteID     string           `json:"-"`
	ClienteNombre string           `json:"cliente_nombre,omitempty"`
	PrestamoID    string           `json:"-"`
	PrestamoValor *decimal.Decimal `json:"prestamo_valor,omitempty"`
	Monto         *decimal.Decimal `json:"monto,omitempty"`
	Mensaje       string           `json:"mensaje,omitempty"`
	Etiqueta      string           `json:"etiqueta"`
	Sintetico     bool             `json:"sintetico"`
}

// ─── Morosidad ───────────────────────────────────────────────────────────────

type Moroso struct {
	PrestamoID    string          `json:"prestamo_id"`
	ClienteID     string          `json:"cliente_id,omitempty"`
	ClienteNombre string          `json:"cliente_nombre,omitempty"`
	Restante      decimal.Decimal `json:"restante"`
	DiasAtraso    int             `json:"dias_atraso"`
	RutaID        string          `json:"ruta_id,omitempty"`
	CobradorID    string          `json:"cobrador_id,omitempty"`
}

type MorosidadSnapshot struct {
	Activos  int             `json:"activos"`
	EnAtraso int             `json:"en_atraso"`
	Ratio    decimal.Decimal `json:"ratio"`
	Top      []Moroso        `json:"top"`
}

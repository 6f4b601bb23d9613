package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// MovimientoRequest records one immutable cash event in cajaDiaria. Tipo is a
// raw kind; the worker stores it verbatim and readers normalize it.
type MovimientoRequest struct {
	Tipo            string          `json:"tipo"             validate:"required,max=40"`
	Monto           decimal.Decimal `json:"monto"            validate:"required,gt=0"`
	OperationalDate string          `json:"operational_date" validate:"required,datetime=2006-01-02"`
	RutaID          string          `json:"ruta_id"          validate:"omitempty,max=64"`
	CobradorID      string          `json:"cobrador_id"      validate:"omitempty,max=128"`
	ClienteID       string          `json:"cliente_id"       validate:"omitempty,max=128"`
	ClienteNombre   string          `json:"cliente_nombre"   validate:"omitempty,max=200"`
	PrestamoID      string          `json:"prestamo_id"      validate:"omitempty,max=128"`
	Categoria       string          `json:"categoria"        validate:"omitempty,max=120"`
	Nota            string          `json:"nota"             validate:"omitempty,max=500"`
}

// CierreRequest records the daily closing of one collector.
type CierreRequest struct {
	Dia        string          `json:"dia"         validate:"required,datetime=2006-01-02"`
	CobradorID string          `json:"cobrador_id" validate:"omitempty,max=128"`
	CajaFinal  decimal.Decimal `json:"caja_final"`
	Nota       string          `json:"nota"        validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoAceptadoResponse struct {
	ID     string `json:"id"`
	Estado string `json:"estado"` // encolado
}

type CierreResponse struct {
	Coleccion  string `json:"coleccion"`
	CobradorID string `json:"cobrador_id"`
	Dia        string `json:"dia"`
}

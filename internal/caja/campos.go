package caja

// campos.go: prioritized field resolution for loosely typed documents.
// Historical writers used several names for the same concept; each concept
// has exactly one resolver below and every caller goes through it.

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Campo reads a possibly nested field ("cliente.nombre") from a document.
func Campo(d map[string]any, ruta string) (any, bool) {
	var cur any = d
	for _, parte := range strings.Split(ruta, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[parte]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Texto returns the first non-empty string among the given fields.
func Texto(d map[string]any, rutas ...string) string {
	for _, r := range rutas {
		v, ok := Campo(d, r)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Numero returns the first numeric field among the given ones. Numeric
// strings are accepted because some writers stored amounts as text.
func Numero(d map[string]any, rutas ...string) (decimal.Decimal, bool) {
	for _, r := range rutas {
		v, ok := Campo(d, r)
		if !ok {
			continue
		}
		if n, ok := aDecimal(v); ok {
			return n, true
		}
	}
	return decimal.Zero, false
}

func aDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Zero, false
}

// Bandera reads the first boolean-ish field among the given ones.
func Bandera(d map[string]any, rutas ...string) bool {
	for _, r := range rutas {
		v, ok := Campo(d, r)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case string:
			p, err := strconv.ParseBool(b)
			return err == nil && p
		case float64:
			return b != 0
		case int:
			return b != 0
		}
	}
	return false
}

// Instante reads a timestamp: time.Time values, RFC 3339 strings or epoch
// milliseconds.
func Instante(d map[string]any, rutas ...string) (time.Time, bool) {
	for _, r := range rutas {
		v, ok := Campo(d, r)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return t, true
		case *time.Time:
			if t != nil {
				return *t, true
			}
		case string:
			if p, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return p, true
			}
		default:
			if ms, ok := aDecimal(v); ok {
				return time.UnixMilli(ms.IntPart()).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// ── Concept resolvers ────────────────────────────────────────────────────────

// MontoMovimiento: monto → amount.
func MontoMovimiento(d map[string]any) (decimal.Decimal, bool) {
	return Numero(d, "monto", "amount")
}

// MontoPrestamoDemo: totalPrestamo → montoTotal.
func MontoPrestamoDemo(d map[string]any) (decimal.Decimal, bool) {
	return Numero(d, "totalPrestamo", "montoTotal")
}

// ClienteNombre: clienteNombre → nombre → cliente.nombre → cliente.displayName → cliente_name.
func ClienteNombre(d map[string]any) string {
	return Texto(d, "clienteNombre", "nombre", "cliente.nombre", "cliente.displayName", "cliente_name")
}

// ClienteEtiqueta is ClienteNombre, then ClienteID, then "Cliente".
func ClienteEtiqueta(d map[string]any) string {
	if n := ClienteNombre(d); n != "" {
		return n
	}
	if id := ClienteID(d); id != "" {
		return id
	}
	return "Cliente"
}

// ClienteID: clienteId → cliente.id.
func ClienteID(d map[string]any) string {
	return Texto(d, "clienteId", "cliente.id")
}

// PrestamoID: prestamoId → prestamo.id.
func PrestamoID(d map[string]any) string {
	return Texto(d, "prestamoId", "prestamo.id")
}

// ValorPrestamo: valorPrestamo → valor → montoPrestamo → capital.
func ValorPrestamo(d map[string]any) (decimal.Decimal, bool) {
	return Numero(d, "valorPrestamo", "valor", "montoPrestamo", "capital")
}

// CobradorMovimiento: admin.
func CobradorMovimiento(d map[string]any) string {
	return Texto(d, "admin")
}

// CobradorPrestamo: admin → cobradorId.
func CobradorPrestamo(d map[string]any) string {
	return Texto(d, "admin", "cobradorId")
}

// ActorAuditoria: admin → actor.
func ActorAuditoria(d map[string]any) string {
	return Texto(d, "admin", "actor")
}

// NotaMovimiento: categoria → nota → descripcion → source.
func NotaMovimiento(d map[string]any) string {
	return Texto(d, "categoria", "nota", "descripcion", "source")
}

// NotaAuditoria: message → nota → descripcion → categoria → source.
func NotaAuditoria(d map[string]any) string {
	return Texto(d, "message", "nota", "descripcion", "categoria", "source")
}

// MarcaTiempo: createdAtMs → createdAt → tsMs → ts.
func MarcaTiempo(d map[string]any) (time.Time, bool) {
	return Instante(d, "createdAtMs", "createdAt", "tsMs", "ts")
}

// FechaPromesa resolves a loan's promised payment day: promesaPago (date
// string) → promesaPagoAt (timestamp, formatted in loc) → promesa (date string).
func FechaPromesa(d map[string]any, loc *time.Location) string {
	if s := Texto(d, "promesaPago"); s != "" {
		return s
	}
	if t, ok := Instante(d, "promesaPagoAt"); ok {
		if loc == nil {
			loc = time.UTC
		}
		return t.In(loc).Format(FormatoDia)
	}
	return Texto(d, "promesa")
}

// PromesaCumplida: promesaCumplida → promesa_cumplida.
func PromesaCumplida(d map[string]any) bool {
	if _, ok := Campo(d, "promesaCumplida"); ok {
		return Bandera(d, "promesaCumplida")
	}
	return Bandera(d, "promesa_cumplida")
}

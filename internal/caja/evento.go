package caja

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormatoDia is the layout of every operational date string.
const FormatoDia = "2006-01-02"

// Evento is a cash event after normalization. ID is the provenance-qualified
// key minted by the stream merger, not the raw document id.
type Evento struct {
	ID            string
	DocID         string
	TenantID      string
	TipoReal      string
	Tipo          Tipo
	Monto         decimal.Decimal
	Dia           string
	RutaID        string
	Cobrador      string
	ClienteID     string
	ClienteNombre string
	PrestamoID    string
	Nota          string
	CreadoEn      time.Time
	// Demo marks loans read from the demo loans source: they carry no route
	// and are counted under every route filter.
	Demo bool
}

// RutaAgnostica reports whether the event matches any route filter: demo loans
// and admin expenses recorded without a route.
func (e Evento) RutaAgnostica() bool {
	if e.Demo {
		return true
	}
	return e.TipoReal == TipoRealGastoAdmin && e.RutaID == ""
}

// DesdeMovimiento normalizes a cajaDiaria document. Documents with an
// unrecognized kind, no amount or no operational date are rejected.
func DesdeMovimiento(clave, docID string, d map[string]any) (Evento, bool) {
	tipoReal := NormalizarTipoReal(Texto(d, "tipo"))
	tipo, ok := Normalizar(tipoReal)
	if !ok {
		return Evento{}, false
	}
	monto, ok := MontoMovimiento(d)
	if !ok {
		return Evento{}, false
	}
	dia := Texto(d, "operationalDate")
	if !esDia(dia) {
		return Evento{}, false
	}
	creado, _ := MarcaTiempo(d)
	return Evento{
		ID:            clave,
		DocID:         docID,
		TenantID:      Texto(d, "tenantId"),
		TipoReal:      tipoReal,
		Tipo:          tipo,
		Monto:         monto,
		Dia:           dia,
		RutaID:        Texto(d, "rutaId"),
		Cobrador:      CobradorMovimiento(d),
		ClienteID:     ClienteID(d),
		ClienteNombre: ClienteNombre(d),
		PrestamoID:    PrestamoID(d),
		Nota:          NotaMovimiento(d),
		CreadoEn:      creado,
	}, true
}

// DesdePrestamoDemo normalizes a demo loan document into a loan disbursement
// on its start date (fechaInicio), attributed to its creator.
func DesdePrestamoDemo(clave, docID string, d map[string]any) (Evento, bool) {
	monto, ok := MontoPrestamoDemo(d)
	if !ok {
		monto = decimal.Zero
	}
	dia := Texto(d, "fechaInicio")
	if !esDia(dia) {
		return Evento{}, false
	}
	creado, _ := MarcaTiempo(d)
	return Evento{
		ID:            clave,
		DocID:         docID,
		TenantID:      Texto(d, "tenantId"),
		TipoReal:      string(TipoPrestamo),
		Tipo:          TipoPrestamo,
		Monto:         monto,
		Dia:           dia,
		Cobrador:      Texto(d, "creadoPor"),
		ClienteID:     ClienteID(d),
		ClienteNombre: Texto(d, "clienteAlias", "concepto"),
		PrestamoID:    docID,
		CreadoEn:      creado,
		Demo:          true,
	}, true
}

func esDia(s string) bool {
	_, err := time.Parse(FormatoDia, s)
	return err == nil
}

// DiaAnterior returns the calendar day n days before dia.
func DiaAnterior(dia string, n int) (string, error) {
	t, err := time.Parse(FormatoDia, dia)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -n).Format(FormatoDia), nil
}

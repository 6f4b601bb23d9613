package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cobranzas/internal/caja"
	"cobranzas/internal/config"
	"cobranzas/internal/dto"
	"cobranzas/internal/infra"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"
)

// ErrFiltrosInvalidos is returned when a view is started with a malformed or
// inverted date window.
var ErrFiltrosInvalidos = errors.New("filtros inválidos")

// Human-readable error states. The cause is logged by the stream layer;
// clients only see this text.
const (
	errCaja      = "No se pudieron cargar los movimientos de caja."
	errCierres   = "No se pudieron cargar los cierres."
	errRutas     = "No se pudo cargar el ranking de rutas."
	errAlertas   = "No se pudieron cargar las alertas."
	errAuditoria = "No se pudo cargar la auditoría."
	errMorosidad = "No se pudo cargar la morosidad."
)

// Opciones configures the live views.
type Opciones struct {
	// LookbackDias is how many days before the window are aggregated to seed
	// the first day's opening balance.
	LookbackDias int
	// LecturaTimeout bounds every awaited point read and lookback query.
	LecturaTimeout time.Duration
	// Zona is the tenant time zone used for "today".
	Zona *time.Location
	// CierreTTL is how long a missing closing stays memoized before it is
	// looked up again.
	CierreTTL time.Duration
	Ahora     func() time.Time
}

func (o Opciones) conDefaults() Opciones {
	if o.LookbackDias <= 0 {
		o.LookbackDias = 1
	}
	if o.LecturaTimeout <= 0 {
		o.LecturaTimeout = 10 * time.Second
	}
	if o.Zona == nil {
		o.Zona = time.UTC
	}
	if o.CierreTTL <= 0 {
		o.CierreTTL = 5 * time.Minute
	}
	if o.Ahora == nil {
		o.Ahora = time.Now
	}
	return o
}

// OpcionesDeConfig maps the view settings of cfg.
func OpcionesDeConfig(cfg *config.Config) Opciones {
	return Opciones{
		LookbackDias:   cfg.LookbackDias,
		LecturaTimeout: time.Duration(cfg.SnapshotTimeoutSeconds) * time.Second,
		Zona:           infra.CargarZona(cfg.TenantTZ),
		CierreTTL:      time.Duration(cfg.CierreMemoTTLSeconds) * time.Second,
	}
}

// hoy is the current calendar day in the tenant zone.
func (o Opciones) hoy() string {
	return infra.HoyEn(o.Zona, o.Ahora())
}

// ── Suscripcion ──────────────────────────────────────────────────────────────

// Suscripcion is a running view instance. Actualizar swaps its parameters,
// disposing every live query of the previous ones; Cerrar disposes it.
type Suscripcion[P any] struct {
	vista   *stream.Vista
	iniciar func(ctx context.Context, v *stream.Vista, p P) error
}

func suscribir[P any](ctx context.Context, store repository.Store, nombre string, p P,
	iniciar func(ctx context.Context, v *stream.Vista, p P) error) (*Suscripcion[P], error) {
	s := &Suscripcion[P]{vista: stream.NewVista(store, nombre), iniciar: iniciar}
	if err := s.Actualizar(ctx, p); err != nil {
		s.Cerrar()
		return nil, err
	}
	return s, nil
}

func (s *Suscripcion[P]) Actualizar(ctx context.Context, p P) error {
	return s.iniciar(ctx, s.vista, p)
}

func (s *Suscripcion[P]) Cerrar() {
	s.vista.Cerrar()
}

// estado wraps a computed value with the loading and error flags of c.
func estado[T any](datos T, c stream.Cambio, mensaje string) dto.Estado[T] {
	e := dto.Estado[T]{Datos: datos, Cargando: c.Cargando}
	if c.Err != nil {
		e.Error = mensaje
	}
	return e
}

func validarFiltros(f dto.Filtros) error {
	if f.TenantID == "" {
		return fmt.Errorf("%w: tenant requerido", ErrFiltrosInvalidos)
	}
	desde, err := time.Parse(caja.FormatoDia, f.Desde)
	if err != nil {
		return fmt.Errorf("%w: desde %q", ErrFiltrosInvalidos, f.Desde)
	}
	hasta, err := time.Parse(caja.FormatoDia, f.Hasta)
	if err != nil {
		return fmt.Errorf("%w: hasta %q", ErrFiltrosInvalidos, f.Hasta)
	}
	if desde.After(hasta) {
		return fmt.Errorf("%w: desde posterior a hasta", ErrFiltrosInvalidos)
	}
	return nil
}

func filtroDe(f dto.Filtros) caja.Filtro {
	return caja.Filtro{Desde: f.Desde, Hasta: f.Hasta, RutaID: f.RutaID, Cobrador: f.CobradorID}
}

// ── Cash sources ─────────────────────────────────────────────────────────────

const (
	fuenteCaja          = "cajaDiaria"
	fuenteGastosAdmin   = "gastosAdmin"
	fuentePrestamosDemo = "prestamosDemo"
)

func consultaCaja(f dto.Filtros) repository.Consulta {
	q := repository.Consulta{
		TenantID:   f.TenantID,
		Coleccion:  model.ColeccionCajaDiaria,
		CampoFecha: "operationalDate",
		Desde:      f.Desde,
		Hasta:      f.Hasta,
		Orden:      repository.Orden{Campo: "operationalDate"},
	}
	if f.CobradorID != "" {
		q = q.Con("admin", f.CobradorID)
	}
	return q
}

// fuentesCaja lists the live sources behind every cash aggregate: the main
// cash events query, the admin expenses of any route when a route filter is
// set, and the demo loans, which carry no route at all.
func fuentesCaja(f dto.Filtros) []stream.Fuente {
	principal := consultaCaja(f)
	if f.RutaID != "" {
		principal = principal.Con("rutaId", f.RutaID)
	}
	fuentes := []stream.Fuente{{Nombre: fuenteCaja, Consulta: principal}}
	if f.RutaID != "" {
		fuentes = append(fuentes, stream.Fuente{
			Nombre:   fuenteGastosAdmin,
			Consulta: consultaCaja(f).Con("tipo", caja.TipoRealGastoAdmin),
		})
	}

	demo := repository.Consulta{
		TenantID:   f.TenantID,
		Coleccion:  model.ColeccionPrestamos,
		Grupo:      true,
		CampoFecha: "fechaInicio",
		Desde:      f.Desde,
		Hasta:      f.Hasta,
		Orden:      repository.Orden{Campo: "fechaInicio"},
	}.Con("source", "demo")
	if f.CobradorID != "" {
		demo = demo.Con("creadoPor", f.CobradorID)
	}
	return append(fuentes, stream.Fuente{Nombre: fuentePrestamosDemo, Consulta: demo})
}

// eventosDe normalizes merged entries, dropping the malformed ones.
func eventosDe(entradas []stream.Entrada) []caja.Evento {
	out := make([]caja.Evento, 0, len(entradas))
	for _, e := range entradas {
		var (
			ev caja.Evento
			ok bool
		)
		if e.Fuente == fuentePrestamosDemo {
			ev, ok = caja.DesdePrestamoDemo(e.Clave, e.Doc.ID, e.Doc.Datos)
		} else {
			ev, ok = caja.DesdeMovimiento(e.Clave, e.Doc.ID, e.Doc.Datos)
		}
		if !ok {
			continue
		}
		if ev.TenantID == "" {
			ev.TenantID = e.Doc.TenantID
		}
		if ev.CreadoEn.IsZero() {
			ev.CreadoEn = e.Doc.CreatedAt
		}
		out = append(out, ev)
	}
	return out
}

// motor holds what every cash view shares: the store and the options.
type motor struct {
	store repository.Store
	opts  Opciones
}

// agregar aggregates the current merged state of a cash view. The returned
// Semillas run the lookback at most once for this emission.
func (m motor) agregar(c stream.Cambio, f dto.Filtros) (caja.Agregado, *caja.Semillas) {
	agg := caja.Agregar(eventosDe(c.Entradas), filtroDe(f))
	return agg, caja.NuevasSemillas(m.retroceso(f))
}

// retroceso queries the same sources as the window over the LookbackDias days
// before it, merges and aggregates them with the same filters.
func (m motor) retroceso(f dto.Filtros) caja.Retroceso {
	return func(ctx context.Context) (caja.Agregado, error) {
		hasta, err := caja.DiaAnterior(f.Desde, 1)
		if err != nil {
			return caja.Agregado{}, err
		}
		desde, err := caja.DiaAnterior(f.Desde, m.opts.LookbackDias)
		if err != nil {
			return caja.Agregado{}, err
		}
		previo := f
		previo.Desde, previo.Hasta = desde, hasta

		ctx, cancel := context.WithTimeout(ctx, m.opts.LecturaTimeout)
		defer cancel()

		fuentes := fuentesCaja(previo)
		merger := stream.NewMerger(fuentes, func(stream.Cambio) {})
		for i, fu := range fuentes {
			docs, err := m.store.QueryOnce(ctx, fu.Consulta)
			if err != nil {
				return caja.Agregado{}, fmt.Errorf("lookback %s: %w", fu.Nombre, err)
			}
			merger.Actualizar(i, docs)
		}
		return caja.Agregar(eventosDe(merger.Unir().Entradas), filtroDe(previo)), nil
	}
}

// ── Mapping helpers ──────────────────────────────────────────────────────────

func totalesDTO(m caja.Montos) dto.Totales {
	return dto.Totales{
		Inicial:   m.Inicial,
		Cobrado:   m.Cobrado,
		Prestado:  m.Prestado,
		Gastos:    m.Gastos,
		Ingresos:  m.Ingresos,
		Retiros:   m.Retiros,
		CajaFinal: caja.CajaFinal(m),
	}
}

func diaDTO(d caja.DiaSaldo) dto.DiaCaja {
	return dto.DiaCaja{
		Dia:         d.Dia,
		Totales:     totalesDTO(d.Montos),
		Apertura:    d.Apertura,
		Movimientos: d.Movimientos,
	}
}

func movimientos(dias []caja.DiaSaldo) int {
	n := 0
	for _, d := range dias {
		n += d.Movimientos
	}
	return n
}

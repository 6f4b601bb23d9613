package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"cobranzas/internal/caja"
	"cobranzas/internal/dto"
	"cobranzas/internal/model"
	"cobranzas/internal/repository"
	"cobranzas/internal/stream"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	AlertaCierreFaltante = "cierre_faltante"
	AlertaPromesaVencida = "promesa_vencida"

	SeveridadAlta  = "high"
	SeveridadMedia = "medium"
	SeveridadBaja  = "low"
)

const (
	fuenteAlertasCaja = "cajaDiaria"
	fuentePrestamos   = "prestamos"

	// lecturasCierreParalelas bounds concurrent closing lookups per emission.
	lecturasCierreParalelas = 8
)

// AlertasService raises missing-closing and overdue-promise alerts.
type AlertasService interface {
	Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[[]dto.Alerta])) (*Suscripcion[dto.Filtros], error)
	// Calcular runs the same computation once, without subscribing.
	Calcular(ctx context.Context, f dto.Filtros) ([]dto.Alerta, error)
}

type alertasService struct {
	motor
}

func NewAlertasService(store repository.Store, opts Opciones) AlertasService {
	return &alertasService{motor{store: store, opts: opts.conDefaults()}}
}

func fuentesAlertas(f dto.Filtros) []stream.Fuente {
	principal := consultaCaja(f)
	if f.RutaID != "" {
		principal = principal.Con("rutaId", f.RutaID)
	}
	prestamos := repository.Consulta{
		TenantID:  f.TenantID,
		Coleccion: model.ColeccionPrestamos,
		Grupo:     true,
	}
	return []stream.Fuente{
		{Nombre: fuenteAlertasCaja, Consulta: principal},
		{Nombre: fuentePrestamos, Consulta: prestamos},
	}
}

func (s *alertasService) Suscribir(ctx context.Context, f dto.Filtros, fn func(dto.Estado[[]dto.Alerta])) (*Suscripcion[dto.Filtros], error) {
	return suscribir(ctx, s.store, "alertas", f, func(ctx context.Context, v *stream.Vista, f dto.Filtros) error {
		if err := validarFiltros(f); err != nil {
			return err
		}
		memo := newMemoCierres(s.opts.CierreTTL, s.opts.Ahora)
		return v.Iniciar(ctx, fuentesAlertas(f), func(c stream.Cambio) {
			fn(estado(s.calcular(ctx, f, c.Entradas, memo), c, errAlertas))
		})
	})
}

func (s *alertasService) Calcular(ctx context.Context, f dto.Filtros) ([]dto.Alerta, error) {
	if err := validarFiltros(f); err != nil {
		return nil, err
	}
	fuentes := fuentesAlertas(f)
	merger := stream.NewMerger(fuentes, func(stream.Cambio) {})
	for i, fu := range fuentes {
		docs, err := s.store.QueryOnce(ctx, fu.Consulta)
		if err != nil {
			return nil, err
		}
		merger.Actualizar(i, docs)
	}
	memo := newMemoCierres(s.opts.CierreTTL, s.opts.Ahora)
	return s.calcular(ctx, f, merger.Unir().Entradas, memo), nil
}

func (s *alertasService) calcular(ctx context.Context, f dto.Filtros, entradas []stream.Entrada, memo *memoCierres) []dto.Alerta {
	var movimientos, prestamos []model.Documento
	for _, e := range entradas {
		if e.Fuente == fuentePrestamos {
			prestamos = append(prestamos, e.Doc)
		} else {
			movimientos = append(movimientos, e.Doc)
		}
	}

	promesas := s.promesasVencidas(f, prestamos)
	faltantes := s.cierresFaltantes(ctx, f.TenantID, movimientos, memo)

	vistas := make(map[string]struct{}, len(promesas)+len(faltantes))
	out := make([]dto.Alerta, 0, len(promesas)+len(faltantes))
	for _, a := range append(promesas, faltantes...) {
		if _, ok := vistas[a.ID]; ok {
			continue
		}
		vistas[a.ID] = struct{}{}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := rangoSeveridad(out[i].Severidad), rangoSeveridad(out[j].Severidad)
		if si != sj {
			return si > sj
		}
		if out[i].Fecha != out[j].Fecha {
			return out[i].Fecha > out[j].Fecha
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func rangoSeveridad(s string) int {
	switch s {
	case SeveridadAlta:
		return 3
	case SeveridadMedia:
		return 2
	}
	return 1
}

// ── Missing closings ─────────────────────────────────────────────────────────

type diaActor struct {
	dia   string
	actor string
}

// cierresFaltantes checks one closing per (day, actor) pair with cash
// activity. A lookup that fails raises no alert.
func (s *alertasService) cierresFaltantes(ctx context.Context, tenantID string, docs []model.Documento, memo *memoCierres) []dto.Alerta {
	pares := make(map[diaActor]struct{})
	for _, d := range docs {
		if _, ok := caja.Normalizar(caja.Texto(d.Datos, "tipo")); !ok {
			continue
		}
		dia := caja.Texto(d.Datos, "operationalDate")
		if dia == "" {
			continue
		}
		actor := caja.CobradorMovimiento(d.Datos)
		if actor == "" {
			actor = model.ActorSinNombre
		}
		pares[diaActor{dia: dia, actor: actor}] = struct{}{}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		out    []dto.Alerta
		limite = make(chan struct{}, lecturasCierreParalelas)
	)
	for p := range pares {
		if existe, ok := memo.consultar(p); ok {
			if !existe {
				mu.Lock()
				out = append(out, alertaCierre(p))
				mu.Unlock()
			}
			continue
		}
		wg.Add(1)
		go func(p diaActor) {
			defer wg.Done()
			limite <- struct{}{}
			defer func() { <-limite }()

			existe, err := s.existeCierre(ctx, tenantID, p)
			if err != nil {
				log.Warn().Err(err).Str("tenant_id", tenantID).Str("dia", p.dia).Str("actor", p.actor).
					Msg("alertas: closing lookup failed")
				return
			}
			memo.guardar(p, existe)
			if !existe {
				mu.Lock()
				out = append(out, alertaCierre(p))
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *alertasService) existeCierre(ctx context.Context, tenantID string, p diaActor) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LecturaTimeout)
	defer cancel()
	yyyymmdd := strings.ReplaceAll(p.dia, "-", "")
	_, err := s.store.PointRead(ctx, model.ColeccionCierres(tenantID, yyyymmdd), p.actor)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func alertaCierre(p diaActor) dto.Alerta {
	return dto.Alerta{
		ID:         "cierre:" + p.dia + ":" + p.actor,
		Tipo:       AlertaCierreFaltante,
		Severidad:  SeveridadAlta,
		Fecha:      p.dia,
		Mensaje:    "Falta cierre de " + p.actor + " en " + p.dia,
		CobradorID: p.actor,
	}
}

// memoCierres remembers closing lookups for the lifetime of one set of view
// parameters. A found closing stays found; a missing one is looked up again
// once its entry is older than ttl.
type memoCierres struct {
	ttl   time.Duration
	ahora func() time.Time

	mu      sync.Mutex
	vistos  map[diaActor]bool
	faltaEn map[diaActor]time.Time
}

func newMemoCierres(ttl time.Duration, ahora func() time.Time) *memoCierres {
	return &memoCierres{
		ttl:     ttl,
		ahora:   ahora,
		vistos:  make(map[diaActor]bool),
		faltaEn: make(map[diaActor]time.Time),
	}
}

func (m *memoCierres) consultar(p diaActor) (existe, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existe, ok = m.vistos[p]
	if ok && !existe && m.ahora().Sub(m.faltaEn[p]) > m.ttl {
		delete(m.vistos, p)
		delete(m.faltaEn, p)
		return false, false
	}
	return existe, ok
}

func (m *memoCierres) guardar(p diaActor, existe bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vistos[p] = existe
	if !existe {
		m.faltaEn[p] = m.ahora()
	}
}

// ── Overdue promises ─────────────────────────────────────────────────────────

// promesasVencidas lists loans with an unpaid balance whose promised payment
// day is before today in the tenant zone, largest balance first.
func (s *alertasService) promesasVencidas(f dto.Filtros, prestamos []model.Documento) []dto.Alerta {
	hoy := s.opts.hoy()
	type candidata struct {
		alerta     dto.Alerta
		restante   decimal.Decimal
		diasAtraso int64
	}
	var cs []candidata
	for _, d := range prestamos {
		restante, ok := caja.Numero(d.Datos, "restante")
		if !ok || !restante.IsPositive() {
			continue
		}
		promesa := caja.FechaPromesa(d.Datos, s.opts.Zona)
		if promesa == "" || caja.PromesaCumplida(d.Datos) {
			continue
		}
		rutaID := caja.Texto(d.Datos, "rutaId")
		actor := caja.CobradorPrestamo(d.Datos)
		if f.RutaID != "" && rutaID != f.RutaID {
			continue
		}
		if f.CobradorID != "" && actor != f.CobradorID {
			continue
		}
		if promesa >= hoy {
			continue
		}

		nombre := caja.ClienteEtiqueta(d.Datos)
		atraso, _ := caja.Numero(d.Datos, "diasAtraso")
		meta := map[string]any{
			"prestamo_id": d.ID,
			"restante":    restante,
			"dias_atraso": atraso.IntPart(),
		}
		if cliente := caja.ClienteID(d.Datos); cliente != "" {
			meta["cliente_id"] = cliente
		}
		cs = append(cs, candidata{
			alerta: dto.Alerta{
				ID:         "promesa:" + d.ID,
				Tipo:       AlertaPromesaVencida,
				Severidad:  SeveridadMedia,
				Fecha:      promesa,
				Mensaje:    "Promesa vencida de " + nombre + " (restante " + restante.String() + ")",
				CobradorID: actor,
				RutaID:     rutaID,
				Meta:       meta,
			},
			restante:   restante,
			diasAtraso: atraso.IntPart(),
		})
	}

	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].restante.Equal(cs[j].restante) {
			return cs[i].restante.GreaterThan(cs[j].restante)
		}
		return cs[i].diasAtraso > cs[j].diasAtraso
	})
	out := make([]dto.Alerta, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.alerta)
	}
	return out
}

package stream

import (
	"context"
	"sync"

	"cobranzas/internal/model"
	"cobranzas/internal/repository"

	"github.com/rs/zerolog/log"
)

// Vista owns the live subscriptions of one view instance. Iniciar replaces
// every subscription of the previous parameters; Cerrar disposes them all.
// Callbacks from every source are serialized on the view's mutex and tagged
// with a generation, so deliveries belonging to replaced subscriptions are
// dropped.
type Vista struct {
	store  repository.Store
	nombre string

	mu        sync.Mutex
	gen       uint64
	disposers []repository.Disposer
	cerrada   bool
}

func NewVista(store repository.Store, nombre string) *Vista {
	return &Vista{store: store, nombre: nombre}
}

// Iniciar disposes the current subscriptions and subscribes every source.
// alCambiar receives each merged emission while the view's mutex is held.
func (v *Vista) Iniciar(ctx context.Context, fuentes []Fuente, alCambiar func(Cambio)) error {
	v.mu.Lock()
	if v.cerrada {
		v.mu.Unlock()
		return ErrVistaCerrada
	}
	v.disponerLocked()
	v.gen++
	gen := v.gen
	merger := NewMerger(fuentes, alCambiar)
	v.mu.Unlock()

	// Subscribing happens outside the mutex: stores may deliver the initial
	// snapshot synchronously, and that delivery takes the mutex itself.
	nuevos := make([]repository.Disposer, 0, len(fuentes))
	for i, f := range fuentes {
		dispose, err := v.store.SubscribeRange(ctx, f.Consulta,
			func(docs []model.Documento) {
				v.entregar(gen, func() { merger.Actualizar(i, docs) })
			},
			func(err error) {
				log.Warn().Err(err).Str("vista", v.nombre).Str("fuente", f.Nombre).Msg("stream: source error")
				v.entregar(gen, func() { merger.Fallar(i, err) })
			},
		)
		if err != nil {
			log.Warn().Err(err).Str("vista", v.nombre).Str("fuente", f.Nombre).Msg("stream: subscribe failed")
			v.entregar(gen, func() { merger.Fallar(i, err) })
			continue
		}
		nuevos = append(nuevos, dispose)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen || v.cerrada {
		// restarted or closed while subscribing
		for _, d := range nuevos {
			d()
		}
		return nil
	}
	v.disposers = nuevos
	return nil
}

func (v *Vista) entregar(gen uint64, fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen || v.cerrada {
		return
	}
	fn()
}

// Cerrar disposes every subscription; later deliveries are dropped.
func (v *Vista) Cerrar() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cerrada = true
	v.gen++
	v.disponerLocked()
}

func (v *Vista) disponerLocked() {
	for _, d := range v.disposers {
		d()
	}
	v.disposers = nil
}

// Activas returns the number of live subscriptions held by the view.
func (v *Vista) Activas() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.disposers)
}

// Package stream merges independently updating live query results into one
// deduplicated document set and owns the subscription lifecycle of a view.
package stream

import (
	"errors"
	"sort"

	"cobranzas/internal/model"
	"cobranzas/internal/repository"
)

// Fuente is one live source of a view. Documents are keyed "espacio:id";
// without an explicit Espacio the document's own collection path is used, so
// two sources returning the same stored document deduplicate each other while
// equal ids from different collections never collide.
type Fuente struct {
	Nombre   string
	Espacio  string
	Consulta repository.Consulta
}

func (f Fuente) clave(d model.Documento) string {
	if f.Espacio != "" {
		return f.Espacio + ":" + d.ID
	}
	return d.Coleccion + ":" + d.ID
}

// Entrada is one merged document with its provenance-qualified key.
type Entrada struct {
	Clave  string
	Fuente string
	Doc    model.Documento
}

type estadoFuente int

const (
	pendiente estadoFuente = iota // nothing delivered yet
	recibida                      // holds the latest snapshot
	fallida                       // last delivery was an error; keeps the previous snapshot
)

type fuenteEstado struct {
	fuente Fuente
	estado estadoFuente
	docs   []model.Documento
	err    error
}

// Cambio is one emission of the merger.
type Cambio struct {
	Entradas []Entrada
	// Cargando is true until every source delivered or failed once.
	Cargando bool
	// Err is the error of the first failing source, if any.
	Err error
}

// Merger keeps the last snapshot of each source and emits the union after
// every update. It is not safe for concurrent use; Vista serializes it.
type Merger struct {
	fuentes []*fuenteEstado
	emitir  func(Cambio)
}

func NewMerger(fuentes []Fuente, emitir func(Cambio)) *Merger {
	m := &Merger{emitir: emitir}
	for _, f := range fuentes {
		m.fuentes = append(m.fuentes, &fuenteEstado{fuente: f})
	}
	return m
}

// Actualizar replaces the whole contribution of source i and emits.
func (m *Merger) Actualizar(i int, docs []model.Documento) {
	fe := m.fuentes[i]
	fe.docs = docs
	fe.estado = recibida
	fe.err = nil
	m.emitir(m.Unir())
}

// Fallar records an error on source i and emits. The source's previous
// snapshot stays in the union.
func (m *Merger) Fallar(i int, err error) {
	fe := m.fuentes[i]
	fe.estado = fallida
	fe.err = err
	m.emitir(m.Unir())
}

// Unir computes the current union, sorted by key.
func (m *Merger) Unir() Cambio {
	var c Cambio
	vistos := make(map[string]struct{})
	for _, fe := range m.fuentes {
		switch fe.estado {
		case pendiente:
			c.Cargando = true
		case fallida:
			if c.Err == nil {
				c.Err = fe.err
			}
		}
		for _, d := range fe.docs {
			clave := fe.fuente.clave(d)
			if _, ok := vistos[clave]; ok {
				continue
			}
			vistos[clave] = struct{}{}
			c.Entradas = append(c.Entradas, Entrada{Clave: clave, Fuente: fe.fuente.Nombre, Doc: d})
		}
	}
	sort.Slice(c.Entradas, func(i, j int) bool { return c.Entradas[i].Clave < c.Entradas[j].Clave })
	return c
}

// ErrVistaCerrada is returned when starting a view that was closed.
var ErrVistaCerrada = errors.New("vista cerrada")

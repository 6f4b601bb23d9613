package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cobranzas/internal/model"
)

// MemoryStore implements Store in memory. Live subscriptions are delivered
// synchronously from Put, on the writer's goroutine.
// Intended for demos and tests; needs neither Postgres nor Redis.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]model.Documento // coleccion → id → doc
	subs map[int]*suscripcion
	next int

	errLectura error
}

type suscripcion struct {
	q        Consulta
	onUpdate func([]model.Documento)
	onError  func(error)
	cerrada  atomic.Bool
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]model.Documento),
		subs: make(map[int]*suscripcion),
	}
}

// FallarLecturas makes every PointRead and QueryOnce return err until called
// again with nil.
func (s *MemoryStore) FallarLecturas(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errLectura = err
}

// FallarSuscripciones delivers err to every subscription matching the
// collection path.
func (s *MemoryStore) FallarSuscripciones(coleccion string, err error) {
	for _, sub := range s.suscripcionesDe(model.Documento{Coleccion: coleccion, Grupo: model.GrupoDe(coleccion)}, true) {
		if !sub.cerrada.Load() {
			sub.onError(err)
		}
	}
}

// Suscripciones returns the number of live subscriptions.
func (s *MemoryStore) Suscripciones() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *MemoryStore) Put(_ context.Context, doc *model.Documento) error {
	if doc.Coleccion == "" || doc.ID == "" {
		return fmt.Errorf("documento sin colección o id")
	}
	doc.Grupo = model.GrupoDe(doc.Coleccion)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	col, ok := s.docs[doc.Coleccion]
	if !ok {
		col = make(map[string]model.Documento)
		s.docs[doc.Coleccion] = col
	}
	col[doc.ID] = *doc
	s.mu.Unlock()

	for _, sub := range s.suscripcionesDe(*doc, false) {
		docs := s.consultar(sub.q)
		if !sub.cerrada.Load() {
			sub.onUpdate(docs)
		}
	}
	return nil
}

func (s *MemoryStore) suscripcionesDe(doc model.Documento, ignorarTenant bool) []*suscripcion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.subs))
	for id, sub := range s.subs {
		q := sub.q
		if ignorarTenant {
			q.TenantID = ""
		}
		if q.Aplica(doc) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]*suscripcion, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func (s *MemoryStore) SubscribeRange(ctx context.Context, q Consulta, onUpdate func([]model.Documento), onError func(error)) (Disposer, error) {
	if onError == nil {
		onError = func(error) {}
	}
	s.mu.Lock()
	id := s.next
	s.next++
	sub := &suscripcion{q: q, onUpdate: onUpdate, onError: onError}
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			sub.cerrada.Store(true)
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			dispose()
		}()
	}

	onUpdate(s.consultar(q))
	return dispose, nil
}

func (s *MemoryStore) PointRead(_ context.Context, coleccion, id string) (model.Documento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.errLectura != nil {
		return model.Documento{}, s.errLectura
	}
	doc, ok := s.docs[coleccion][id]
	if !ok {
		return model.Documento{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) QueryOnce(_ context.Context, q Consulta) ([]model.Documento, error) {
	s.mu.RLock()
	err := s.errLectura
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return s.consultar(q), nil
}

func (s *MemoryStore) consultar(q Consulta) []model.Documento {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []model.Documento{}
	for _, col := range s.docs {
		for _, doc := range col {
			if coincide(q, doc) {
				matched = append(matched, doc)
			}
		}
	}
	ordenar(matched, q.Orden)
	return matched
}

func coincide(q Consulta, doc model.Documento) bool {
	if !q.Aplica(doc) {
		return false
	}
	for campo, valor := range q.Igual {
		v, ok := doc.Datos[campo]
		if !ok || fmt.Sprint(v) != fmt.Sprint(valor) {
			return false
		}
	}
	if q.CampoFecha != "" {
		f, _ := doc.Datos[q.CampoFecha].(string)
		if f == "" {
			return false
		}
		if q.Desde != "" && f < q.Desde {
			return false
		}
		if q.Hasta != "" && f > q.Hasta {
			return false
		}
	}
	return true
}

func ordenar(docs []model.Documento, o Orden) {
	sort.SliceStable(docs, func(i, j int) bool {
		if o.Campo != "" {
			a, b := fmt.Sprint(docs[i].Datos[o.Campo]), fmt.Sprint(docs[j].Datos[o.Campo])
			if a != b {
				if o.Desc {
					return a > b
				}
				return a < b
			}
		}
		if docs[i].Coleccion != docs[j].Coleccion {
			return docs[i].Coleccion < docs[j].Coleccion
		}
		return docs[i].ID < docs[j].ID
	})
}

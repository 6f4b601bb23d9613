package repository

import (
	"context"
	"errors"

	"cobranzas/internal/model"
)

// ErrNotFound is returned by PointRead when the document does not exist.
var ErrNotFound = errors.New("documento no encontrado")

// Orden is the result ordering of a query over a document field.
type Orden struct {
	Campo string
	Desc  bool
}

// Consulta describes a range-filtered, equality-filtered query over one
// collection path, or over every collection sharing a group name when Grupo
// is set.
type Consulta struct {
	TenantID  string
	Coleccion string
	Grupo     bool

	// Igual holds field == value filters over the document fields.
	Igual map[string]any

	// CampoFecha, when set, restricts results to Desde <= campo <= Hasta
	// (inclusive, lexicographic over yyyy-mm-dd strings). Empty bounds are open.
	CampoFecha string
	Desde      string
	Hasta      string

	Orden Orden
}

// Disposer cancels a live subscription. It is safe to call more than once.
type Disposer func()

// Store is the read/listen contract the views need from the document store,
// plus the single write used by ingestion.
type Store interface {
	// SubscribeRange delivers the full current result set on subscribe and
	// again after every change affecting the query. onUpdate and onError are
	// never called after the disposer returns.
	SubscribeRange(ctx context.Context, q Consulta, onUpdate func([]model.Documento), onError func(error)) (Disposer, error)
	// PointRead reads one document by collection path and id.
	PointRead(ctx context.Context, coleccion, id string) (model.Documento, error)
	// QueryOnce runs q once without subscribing.
	QueryOnce(ctx context.Context, q Consulta) ([]model.Documento, error)
	// Put writes a document and notifies subscribers of its collection.
	Put(ctx context.Context, doc *model.Documento) error
}

// Con returns a copy of q with an extra equality filter.
func (q Consulta) Con(campo string, valor any) Consulta {
	igual := make(map[string]any, len(q.Igual)+1)
	for k, v := range q.Igual {
		igual[k] = v
	}
	igual[campo] = valor
	q.Igual = igual
	return q
}

// Aplica reports whether doc belongs to the collection and tenant of q.
func (q Consulta) Aplica(doc model.Documento) bool {
	if q.TenantID != "" && doc.TenantID != q.TenantID {
		return false
	}
	if q.Grupo {
		return doc.Grupo == model.GrupoDe(q.Coleccion)
	}
	return doc.Coleccion == q.Coleccion
}

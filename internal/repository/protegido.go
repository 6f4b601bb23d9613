package repository

import (
	"context"
	"errors"

	"cobranzas/internal/infra"
	"cobranzas/internal/model"
)

// StoreProtegido routes the one-shot reads (lookback and closing checks)
// through a circuit breaker so a struggling database fails fast instead of
// stalling every view emission. Live subscriptions and writes pass through.
type StoreProtegido struct {
	Store
	cb *infra.CircuitBreaker
}

func NewStoreProtegido(s Store, cb *infra.CircuitBreaker) *StoreProtegido {
	return &StoreProtegido{Store: s, cb: cb}
}

// Estado exposes the breaker state for the health endpoint.
func (s *StoreProtegido) Estado() infra.CBState { return s.cb.State() }

func (s *StoreProtegido) PointRead(ctx context.Context, coleccion, id string) (model.Documento, error) {
	var doc model.Documento
	var noExiste bool
	err := s.cb.Execute(func() error {
		d, err := s.Store.PointRead(ctx, coleccion, id)
		if errors.Is(err, ErrNotFound) {
			// a missing document is an answer, not a failure
			noExiste = true
			return nil
		}
		doc = d
		return err
	})
	if err != nil {
		return model.Documento{}, err
	}
	if noExiste {
		return model.Documento{}, ErrNotFound
	}
	return doc, nil
}

func (s *StoreProtegido) QueryOnce(ctx context.Context, q Consulta) ([]model.Documento, error) {
	var docs []model.Documento
	err := s.cb.Execute(func() error {
		var err error
		docs, err = s.Store.QueryOnce(ctx, q)
		return err
	})
	return docs, err
}

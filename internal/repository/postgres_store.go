package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cobranzas/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore keeps documents in a JSONB table and turns Redis pub/sub
// notifications into live query results: every change published on a
// collection channel makes each subscriber re-run its query and deliver the
// full snapshot.
type PostgresStore struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewPostgresStore(db *gorm.DB, rdb *redis.Client) *PostgresStore {
	return &PostgresStore{db: db, rdb: rdb}
}

// Canal is the notification channel of a query.
func Canal(q Consulta) string {
	if q.Grupo {
		return canalGrupo(q.TenantID, model.GrupoDe(q.Coleccion))
	}
	return canalColeccion(q.TenantID, q.Coleccion)
}

func canalColeccion(tenantID, coleccion string) string {
	return "docs:" + tenantID + ":" + coleccion
}

func canalGrupo(tenantID, grupo string) string {
	return "docs:" + tenantID + ":grupo:" + grupo
}

func (s *PostgresStore) Put(ctx context.Context, doc *model.Documento) error {
	if doc.Coleccion == "" || doc.ID == "" || doc.TenantID == "" {
		return fmt.Errorf("documento sin colección, id o tenant")
	}
	doc.Grupo = model.GrupoDe(doc.Coleccion)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(doc).Error
	if err != nil {
		return fmt.Errorf("guardar documento: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Publish(ctx, canalColeccion(doc.TenantID, doc.Coleccion), doc.ID)
	pipe.Publish(ctx, canalGrupo(doc.TenantID, doc.Grupo), doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publicar cambio: %w", err)
	}
	return nil
}

func (s *PostgresStore) PointRead(ctx context.Context, coleccion, id string) (model.Documento, error) {
	var doc model.Documento
	err := s.db.WithContext(ctx).
		Where("coleccion = ? AND id = ?", coleccion, id).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Documento{}, ErrNotFound
	}
	return doc, err
}

func (s *PostgresStore) QueryOnce(ctx context.Context, q Consulta) ([]model.Documento, error) {
	var docs []model.Documento
	if err := s.construir(ctx, q).Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *PostgresStore) construir(ctx context.Context, q Consulta) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&model.Documento{})
	if q.Grupo {
		tx = tx.Where("grupo = ?", model.GrupoDe(q.Coleccion))
	} else {
		tx = tx.Where("coleccion = ?", q.Coleccion)
	}
	if q.TenantID != "" {
		tx = tx.Where("tenant_id = ?", q.TenantID)
	}

	campos := make([]string, 0, len(q.Igual))
	for c := range q.Igual {
		campos = append(campos, c)
	}
	sort.Strings(campos)
	for _, c := range campos {
		tx = tx.Where("datos->>? = ?", c, fmt.Sprint(q.Igual[c]))
	}

	if q.CampoFecha != "" {
		tx = tx.Where("datos->>? <> ''", q.CampoFecha)
		if q.Desde != "" {
			tx = tx.Where("datos->>? >= ?", q.CampoFecha, q.Desde)
		}
		if q.Hasta != "" {
			tx = tx.Where("datos->>? <= ?", q.CampoFecha, q.Hasta)
		}
	}

	if q.Orden.Campo != "" {
		dir := "ASC"
		if q.Orden.Desc {
			dir = "DESC"
		}
		tx = tx.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "datos->>? " + dir + ", coleccion, id",
			Vars: []any{q.Orden.Campo},
		}})
	} else {
		tx = tx.Order("coleccion, id")
	}
	return tx
}

func (s *PostgresStore) SubscribeRange(ctx context.Context, q Consulta, onUpdate func([]model.Documento), onError func(error)) (Disposer, error) {
	if q.TenantID == "" {
		return nil, fmt.Errorf("suscripción sin tenant")
	}
	if onError == nil {
		onError = func(error) {}
	}

	subCtx, cancel := context.WithCancel(ctx)
	ps := s.rdb.Subscribe(subCtx, Canal(q))
	// Wait for the subscription to be confirmed so no change between the
	// initial query and the first notification is lost.
	if _, err := ps.Receive(subCtx); err != nil {
		cancel()
		_ = ps.Close()
		return nil, fmt.Errorf("suscribir %s: %w", Canal(q), err)
	}

	docs, err := s.QueryOnce(subCtx, q)
	if err != nil {
		cancel()
		_ = ps.Close()
		return nil, err
	}

	var cerrada atomic.Bool
	onUpdate(docs)

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
			}
			// coalesce bursts into one re-query
		drenar:
			for {
				select {
				case <-ch:
				default:
					break drenar
				}
			}

			docs, err := s.QueryOnce(subCtx, q)
			if cerrada.Load() || subCtx.Err() != nil {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("canal", Canal(q)).Msg("store: re-query failed")
				onError(err)
				continue
			}
			onUpdate(docs)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cerrada.Store(true)
			cancel()
			_ = ps.Close()
		})
	}, nil
}

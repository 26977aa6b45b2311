package webhook

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"

	"github.com/livescribe/livescribe/pkg/events"
)

// ErrNotFound is returned when an endpoint or dead letter does not exist.
var ErrNotFound = errors.New("webhook: not found")

// Store persists endpoints, deliveries and dead letters.
type Store interface {
	CreateEndpoint(ctx context.Context, ep *Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
	ListForEvent(ctx context.Context, env events.Envelope) ([]Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
	RecordHealth(ctx context.Context, id string, ok bool) error

	RecordDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error)

	CreateDeadLetter(ctx context.Context, dl *DeadLetter) error
	GetDeadLetter(ctx context.Context, webhookID, id string) (*DeadLetter, error)
	ListDeadLetters(ctx context.Context, webhookID string) ([]DeadLetter, error)
	ResolveDeadLetter(ctx context.Context, id string, replayed bool, lastErr string) error
}

// Repository is the datastore backed Store.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a webhook repository and migrates its tables.
func NewRepository(ctx context.Context, p pool.Pool) (*Repository, error) {
	r := &Repository{pool: p}
	if err := r.db(ctx, false).AutoMigrate(&Endpoint{}, &Delivery{}, &DeadLetter{}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) CreateEndpoint(ctx context.Context, ep *Endpoint) error {
	return r.db(ctx, false).Create(ep).Error
}

func (r *Repository) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	var ep Endpoint
	if err := r.db(ctx, true).Where("id = ?", id).First(&ep).Error; err != nil {
		return nil, notFound(err)
	}
	return &ep, nil
}

func (r *Repository) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var eps []Endpoint
	err := r.db(ctx, true).Order("created_at DESC").Find(&eps).Error
	return eps, err
}

// ListForEvent returns the active endpoints that want env.
func (r *Repository) ListForEvent(ctx context.Context, env events.Envelope) ([]Endpoint, error) {
	var active []Endpoint
	err := r.db(ctx, true).
		Where("is_active = ? AND (session_id = '' OR session_id IS NULL OR session_id = ?)", true, env.SessionID).
		Find(&active).Error
	if err != nil {
		return nil, err
	}
	matched := active[:0]
	for i := range active {
		if active[i].Wants(env) {
			matched = append(matched, active[i])
		}
	}
	return matched, nil
}

func (r *Repository) UpdateEndpoint(ctx context.Context, ep *Endpoint) error {
	return r.db(ctx, false).Save(ep).Error
}

func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	res := r.db(ctx, false).Where("id = ?", id).Delete(&Endpoint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordHealth resets or bumps the endpoint failure counter.
func (r *Repository) RecordHealth(ctx context.Context, id string, ok bool) error {
	q := r.db(ctx, false).Model(&Endpoint{}).Where("id = ?", id)
	if ok {
		return q.Update("failure_count", 0).Error
	}
	return q.Updates(map[string]any{
		"failure_count":   gorm.Expr("failure_count + 1"),
		"last_failure_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}).Error
}

func (r *Repository) RecordDelivery(ctx context.Context, d *Delivery) error {
	return r.db(ctx, false).Create(d).Error
}

// ListDeliveries returns deliveries for an endpoint, newest first.
func (r *Repository) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	var out []Delivery
	q := r.db(ctx, true).Where("webhook_id = ?", webhookID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	return r.db(ctx, false).Create(dl).Error
}

func (r *Repository) GetDeadLetter(ctx context.Context, webhookID, id string) (*DeadLetter, error) {
	var dl DeadLetter
	err := r.db(ctx, true).Where("id = ? AND webhook_id = ?", id, webhookID).First(&dl).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &dl, nil
}

// ListDeadLetters returns the replayable dead letters of an endpoint.
func (r *Repository) ListDeadLetters(ctx context.Context, webhookID string) ([]DeadLetter, error) {
	var out []DeadLetter
	err := r.db(ctx, true).
		Where("webhook_id = ? AND replayable = ?", webhookID, true).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ResolveDeadLetter records a replay. A successful replay retires the dead
// letter; a failed one keeps it with the new error.
func (r *Repository) ResolveDeadLetter(ctx context.Context, id string, replayed bool, lastErr string) error {
	updates := map[string]any{"attempts": gorm.Expr("attempts + 1")}
	if replayed {
		updates["replayable"] = false
	} else {
		updates["last_error"] = lastErr
	}
	return r.db(ctx, false).Model(&DeadLetter{}).Where("id = ?", id).Updates(updates).Error
}

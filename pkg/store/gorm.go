package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"
)

// GormStore keeps sessions in the frame datastore pool.
type GormStore struct {
	pool pool.Pool
}

// NewGormStore creates a store over pool and migrates its tables.
func NewGormStore(ctx context.Context, p pool.Pool) (*GormStore, error) {
	s := &GormStore{pool: p}
	if err := s.db(ctx, false).AutoMigrate(&Session{}, &Analysis{}); err != nil {
		return nil, fmt.Errorf("migrate session tables: %w", err)
	}
	return s, nil
}

func (s *GormStore) db(ctx context.Context, readOnly bool) *gorm.DB {
	return s.pool.DB(ctx, readOnly)
}

func (s *GormStore) CreateSession(ctx context.Context, sess *Session) error {
	if err := validateSession(sess); err != nil {
		return err
	}
	return s.db(ctx, false).Create(sess).Error
}

func (s *GormStore) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.db(ctx, true).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.getSession(s.db(ctx, true), id)
}

func (s *GormStore) getSession(db *gorm.DB, id string) (*Session, error) {
	var sess Session
	err := db.Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *GormStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*Session, error) {
	var updated *Session
	err := s.db(ctx, false).Transaction(func(tx *gorm.DB) error {
		sess, err := s.getSession(tx, id)
		if err != nil {
			return err
		}
		patch.apply(sess)
		if err := validateSession(sess); err != nil {
			return err
		}
		if err := tx.Save(sess).Error; err != nil {
			return err
		}
		updated = sess
		return nil
	})
	return updated, err
}

func (s *GormStore) DeleteSession(ctx context.Context, id string) error {
	return s.db(ctx, false).Transaction(func(tx *gorm.DB) error {
		if _, err := s.getSession(tx, id); err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&Analysis{}).Error; err != nil {
			return fmt.Errorf("delete analyses: %w", err)
		}
		return tx.Where("id = ?", id).Delete(&Session{}).Error
	})
}

func (s *GormStore) CreateAnalysis(ctx context.Context, a *Analysis) error {
	if err := validateAnalysis(a); err != nil {
		return err
	}
	return s.db(ctx, false).Transaction(func(tx *gorm.DB) error {
		if _, err := s.getSession(tx, a.SessionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: session %s does not exist", ErrInvalid, a.SessionID)
			}
			return err
		}
		return tx.Create(a).Error
	})
}

func (s *GormStore) ListAnalyses(ctx context.Context, sessionID string) ([]Analysis, error) {
	var analyses []Analysis
	err := s.db(ctx, true).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&analyses).Error
	return analyses, err
}

// Close is a no-op; the pool belongs to the frame service.
func (s *GormStore) Close() error { return nil }

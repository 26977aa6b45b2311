package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pitabwire/frame/datastore/pool"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dbPool serves a single gorm handle. Only DB is used by GormStore.
type dbPool struct {
	pool.Pool
	db *gorm.DB
}

func (p *dbPool) DB(ctx context.Context, _ bool) *gorm.DB {
	return p.db.WithContext(ctx)
}

func openGormTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(gormsqlite.New(gormsqlite.Config{
		DriverName: "sqlite",
		DSN:        filepath.Join(t.TempDir(), "sessions.db"),
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := NewGormStore(context.Background(), &dbPool{db: db})
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	return s
}

func TestGormDeleteSessionCascadesAnalyses(t *testing.T) {
	s := openGormTestStore(t)
	ctx := context.Background()
	keep := createSession(t, s, "keep")
	drop := createSession(t, s, "drop")

	for _, id := range []string{keep.ID, drop.ID, drop.ID} {
		if err := s.CreateAnalysis(ctx, &Analysis{SessionID: id, Question: "q", Answer: "a"}); err != nil {
			t.Fatalf("CreateAnalysis: %v", err)
		}
	}

	if err := s.DeleteSession(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	var orphans int64
	if err := s.db(ctx, true).Model(&Analysis{}).Where("session_id = ?", drop.ID).Count(&orphans).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d analyses left for deleted session", orphans)
	}

	kept, err := s.ListAnalyses(ctx, keep.ID)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("analyses of other session = %d, want 1", len(kept))
	}
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs fn against every Store backend.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestStore(t)) })
	t.Run("gorm", func(t *testing.T) { fn(t, openGormTestStore(t)) })
}

func createSession(t *testing.T, s Store, title string) *Session {
	t.Helper()
	sess := &Session{Title: title, Transcription: "olá mundo", Language: "pt-BR", WordCount: 2}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestSessionCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		sess := &Session{
			Title:           "Reunião",
			Transcription:   "bom dia a todos",
			Language:        "pt-BR",
			DurationSeconds: 42,
			WordCount:       4,
			Metadata:        Metadata{"speaker": "ana"},
		}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if sess.ID == "" || sess.CreatedAt.IsZero() {
			t.Fatalf("CreateSession did not assign id/timestamps: %+v", sess)
		}

		got, err := s.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.Title != "Reunião" || got.DurationSeconds != 42 || got.Metadata["speaker"] != "ana" {
			t.Errorf("GetSession = %+v", got)
		}

		title := "Reunião semanal"
		active := true
		updated, err := s.UpdateSession(ctx, sess.ID, SessionPatch{Title: &title, IsActive: &active})
		if err != nil {
			t.Fatalf("UpdateSession: %v", err)
		}
		if updated.Title != title || !updated.IsActive || updated.Transcription != "bom dia a todos" {
			t.Errorf("UpdateSession = %+v", updated)
		}

		list, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 1 || list[0].Title != title {
			t.Errorf("ListSessions = %+v", list)
		}

		if err := s.DeleteSession(ctx, sess.ID); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		if _, err := s.GetSession(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSession after delete: err = %v, want ErrNotFound", err)
		}
	})
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	createSession(t, s, "first")
	now = now.Add(time.Minute)
	createSession(t, s, "second")

	list, err := s.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0].Title != "second" {
		t.Errorf("order = %v", list)
	}
}

func TestMissingSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		title := "x"

		if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSession: err = %v", err)
		}
		if _, err := s.UpdateSession(ctx, "missing", SessionPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateSession: err = %v", err)
		}
		if err := s.DeleteSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteSession: err = %v", err)
		}
	})
}

func TestSessionValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.CreateSession(ctx, &Session{Title: "  "}); !errors.Is(err, ErrInvalid) {
			t.Errorf("blank title: err = %v", err)
		}
		if err := s.CreateSession(ctx, &Session{Title: "t", WordCount: -1}); !errors.Is(err, ErrInvalid) {
			t.Errorf("negative word count: err = %v", err)
		}

		sess := createSession(t, s, "valid")
		blank := ""
		if _, err := s.UpdateSession(ctx, sess.ID, SessionPatch{Title: &blank}); !errors.Is(err, ErrInvalid) {
			t.Errorf("update to blank title: err = %v", err)
		}
		got, _ := s.GetSession(ctx, sess.ID)
		if got.Title != "valid" {
			t.Errorf("failed update wrote title %q", got.Title)
		}

		list, _ := s.ListSessions(ctx)
		if len(list) != 1 {
			t.Errorf("invalid creates were written: %d sessions", len(list))
		}
	})
}

func TestAnalyses(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess := createSession(t, s, "meeting")

		a := &Analysis{
			SessionID:     sess.ID,
			Question:      "Quem falou?",
			Answer:        "Ana.",
			Confidence:    1.7,
			RelatedTopics: StringList{"reunião"},
		}
		if err := s.CreateAnalysis(ctx, a); err != nil {
			t.Fatalf("CreateAnalysis: %v", err)
		}
		if a.Confidence != 1 {
			t.Errorf("confidence = %v, want clamped 1", a.Confidence)
		}

		list, err := s.ListAnalyses(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ListAnalyses: %v", err)
		}
		if len(list) != 1 || list[0].Answer != "Ana." || list[0].RelatedTopics[0] != "reunião" {
			t.Errorf("ListAnalyses = %+v", list)
		}

		other, err := s.ListAnalyses(ctx, "unknown")
		if err != nil || len(other) != 0 {
			t.Errorf("ListAnalyses(unknown) = %v, %v", other, err)
		}
	})
}

func TestAnalysisValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sess := createSession(t, s, "meeting")

		tests := []struct {
			name string
			a    Analysis
		}{
			{"missing session id", Analysis{Question: "q", Answer: "a"}},
			{"missing question", Analysis{SessionID: sess.ID, Answer: "a"}},
			{"missing answer", Analysis{SessionID: sess.ID, Question: "q"}},
			{"unknown session", Analysis{SessionID: "nope", Question: "q", Answer: "a"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				a := tt.a
				if err := s.CreateAnalysis(ctx, &a); !errors.Is(err, ErrInvalid) {
					t.Errorf("err = %v, want ErrInvalid", err)
				}
			})
		}
	})
}

func TestDeleteSessionCascadesAnalyses(t *testing.T) {
	s := openTestStore(t)
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

	var orphans int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM session_analyses WHERE session_id = ?`, drop.ID).Scan(&orphans); err != nil {
		t.Fatalf("count: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d analyses left for deleted session", orphans)
	}

	kept, _ := s.ListAnalyses(ctx, keep.ID)
	if len(kept) != 1 {
		t.Errorf("analyses of other session = %d, want 1", len(kept))
	}
}

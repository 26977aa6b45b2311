package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingPassesThrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
		write  bool
	}{
		{"implicit ok", 0, true},
		{"created", http.StatusCreated, true},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				if tt.write {
					_, _ = w.Write([]byte("ok"))
				}
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

			want := tt.status
			if want == 0 {
				want = http.StatusOK
			}
			if rec.Code != want {
				t.Errorf("status = %d, want %d", rec.Code, want)
			}
		})
	}
}

func TestLoggingKeepsFlusher(t *testing.T) {
	flushed := false
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		f.Flush()
		flushed = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/live/x/events", nil))
	if !flushed || !rec.Flushed {
		t.Error("flush did not reach the underlying writer")
	}
}

func TestAuthenticatedWithoutAuthenticator(t *testing.T) {
	called := false
	h := Authenticated(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }), nil)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler not called")
	}
}

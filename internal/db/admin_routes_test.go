package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestAttachAdminRoutes(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	httpMux := http.NewServeMux()
	db.AttachAdminRoutes(httpMux)

	for _, path := range []string{"/debug/tailsql/", "/debug/backup"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			httpMux.ServeHTTP(w, req)

			// Debug routes may refuse non-loopback callers, but must exist.
			if w.Code == http.StatusNotFound {
				t.Errorf("Route %s should be registered, got 404", path)
			}
		})
	}
}

func TestBackupEndpoint_Loopback(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	httpMux := http.NewServeMux()
	db.AttachAdminRoutes(httpMux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Skipf("debug access refused in this environment: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/gzip" {
		t.Errorf("Content-Type = %q, want application/gzip", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected a non-empty backup body")
	}
}

package forge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/contentforge/forge/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DataRoot = t.TempDir()
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000

	e, err := NewEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

func TestEngineServesEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	h := e.Handler()

	post := func(target, body string) (int, map[string]any) {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		var env map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
			t.Fatalf("non-JSON response: %v", err)
		}
		return rec.Code, env
	}

	if code, env := post("/projects",
		`{"id": "blog", "name": "Blog", "api_path": "/api/v1/blog"}`); code != http.StatusOK {
		t.Fatalf("create project: %d / %+v", code, env)
	}
	if code, env := post("/collections",
		`{"id": "pages", "project_id": "blog", "name": "Pages", "structures": [
			{"id": "slug", "name": "Slug", "type": "TEXT", "required": true}
		]}`); code != http.StatusOK {
		t.Fatalf("create collection: %d / %+v", code, env)
	}
	if code, env := post("/data/blog/pages",
		`{"pairs": [{"id": "slug", "type": "TEXT", "value": "home"}]}`); code != http.StatusOK {
		t.Fatalf("create record: %d / %+v", code, env)
	}

	records, err := e.Store().LoadData("blog", "pages")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records))
	}
}

func TestEngineSeedsConstraintCatalog(t *testing.T) {
	e := newTestEngine(t)

	path, err := e.Store().FilePath("constraints")
	if err != nil {
		t.Fatal(err)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(text) == 0 {
		t.Error("constraint catalog should be seeded on first start")
	}
}

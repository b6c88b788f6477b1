package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pokedex-pipeline/internal/store/postgres"
)

type fakeReader struct {
	records    map[int]*postgres.PersistedRecord
	lastParams postgres.ListParams
}

func (f *fakeReader) GetPokemon(ctx context.Context, id int) (*postgres.PersistedRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return rec, nil
}

func (f *fakeReader) ListPokemon(ctx context.Context, p postgres.ListParams) ([]*postgres.PersistedRecord, error) {
	f.lastParams = p
	out := make([]*postgres.PersistedRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeReader) CountPokemon(ctx context.Context) (int, error) {
	return len(f.records), nil
}

func setupTestRouter() (*gin.Engine, *fakeReader) {
	gin.SetMode(gin.TestMode)
	reader := &fakeReader{records: map[int]*postgres.PersistedRecord{
		25: {ID: 25, Name: "pikachu"},
	}}
	return Router(&Handler{Store: reader}), reader
}

func TestGetPokemon(t *testing.T) {
	r, _ := setupTestRouter()

	req, _ := http.NewRequest("GET", "/pokemon/25", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var rec postgres.PersistedRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.ID != 25 || rec.Name != "pikachu" {
		t.Errorf("Expected pikachu/25, got %s/%d", rec.Name, rec.ID)
	}
}

func TestGetPokemonNotFound(t *testing.T) {
	r, _ := setupTestRouter()

	req, _ := http.NewRequest("GET", "/pokemon/999", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetPokemonBadID(t *testing.T) {
	r, _ := setupTestRouter()

	for _, path := range []string{"/pokemon/abc", "/pokemon/-1", "/pokemon/0"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, w.Code)
		}
	}
}

func TestListPokemonPassesFilters(t *testing.T) {
	r, reader := setupTestRouter()

	req, _ := http.NewRequest("GET", "/pokemon?limit=5&offset=10&name_contains=chu&min_bst=300&order_by=bulk_index&desc=true", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	p := reader.lastParams
	if p.Limit != 5 || p.Offset != 10 {
		t.Errorf("Pagination not passed: %+v", p)
	}
	if p.NameContains != "chu" {
		t.Errorf("Expected name filter chu, got %q", p.NameContains)
	}
	if p.MinBaseStatTotal == nil || *p.MinBaseStatTotal != 300 {
		t.Errorf("Expected min_bst 300, got %v", p.MinBaseStatTotal)
	}
	if p.OrderBy != "bulk_index" || !p.Desc {
		t.Errorf("Ordering not passed: %+v", p)
	}
}

func TestListPokemonRejectsUnknownOrderColumn(t *testing.T) {
	r, _ := setupTestRouter()

	req, _ := http.NewRequest("GET", "/pokemon?order_by=created_at", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r, _ := setupTestRouter()

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("Expected ok, got %v", body)
	}
}

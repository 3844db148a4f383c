package extract

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newPagedServer serves `total` records, paginated by offset/limit query
// params, as {"records": [...]} bodies.
func newPagedServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		var recs []string
		for i := offset; i < offset+limit && i < total; i++ {
			recs = append(recs, fmt.Sprintf(`{"id":"r%d"}`, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"records":[%s]}`, strings.Join(recs, ","))
	}))
}

func TestExtractor_ExtractTable_MultiplePages(t *testing.T) {
	t.Parallel()

	srv := newPagedServer(t, 25)
	defer srv.Close()

	dir := t.TempDir()
	e := New(Config{BaseURL: srv.URL, PageSize: 10})

	n, err := e.ExtractTable(t.Context(), dir, "widgets", "/widgets")
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if n != 3 {
		t.Fatalf("page count = %d, want 3", n)
	}

	for _, page := range []int{0, 1, 2} {
		path := filepath.Join(dir, fmt.Sprintf("widgets_%d.json", page))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected page file %s to exist: %v", path, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "widgets_3.json")); err == nil {
		t.Errorf("did not expect a 4th page file")
	}

	countBytes, err := os.ReadFile(filepath.Join(dir, "widgets_count.txt"))
	if err != nil {
		t.Fatalf("reading count file: %v", err)
	}
	if strings.TrimSpace(string(countBytes)) != "3" {
		t.Errorf("count file = %q, want 3", string(countBytes))
	}
}

func TestExtractor_ExtractTable_NoData(t *testing.T) {
	t.Parallel()

	srv := newPagedServer(t, 0)
	defer srv.Close()

	dir := t.TempDir()
	e := New(Config{BaseURL: srv.URL, PageSize: 10})

	n, err := e.ExtractTable(t.Context(), dir, "empty", "/empty")
	if err != nil {
		t.Fatalf("ExtractTable: %v", err)
	}
	if n != 0 {
		t.Fatalf("page count = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty_0.json")); err == nil {
		t.Errorf("did not expect a page file for a source with no data")
	}
	countBytes, err := os.ReadFile(filepath.Join(dir, "empty_count.txt"))
	if err != nil {
		t.Fatalf("reading count file: %v", err)
	}
	if strings.TrimSpace(string(countBytes)) != "0" {
		t.Errorf("count file = %q, want 0", string(countBytes))
	}
}

func TestExtractor_ExtractTable_ErrorStatusPropagates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := New(Config{BaseURL: srv.URL, PageSize: 10})

	if _, err := e.ExtractTable(t.Context(), dir, "missing", "/missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

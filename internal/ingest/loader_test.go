package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `[
		{
			"source_type": "irc",
			"citation": "26 U.S.C. § 195",
			"section": "195",
			"title": "Start-up expenditures",
			"url": "https://uscode.house.gov/title26/section195",
			"version_date": "2025-09-05",
			"text": "A taxpayer may elect to deduct start-up expenditures."
		},
		{
			"source_type": "rulings",
			"citation": "Rev. Rul. 2025-01",
			"title": "Section 179 Deduction Limitations",
			"text_url": "https://www.irs.gov/irb/2025-44"
		}
	]`)

	l := NewLoader(0, zerolog.Nop())
	docs, err := l.LoadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Citation != "26 U.S.C. § 195" || docs[0].Section != "195" {
		t.Errorf("unexpected first document: %+v", docs[0])
	}
	if docs[1].TextURL == "" {
		t.Error("expected second document to carry a text_url")
	}
}

func TestLoadManifestRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown source type",
			content: `[{"source_type": "blogs", "citation": "X", "text": "y"}]`,
		},
		{
			name:    "missing citation",
			content: `[{"source_type": "irc", "text": "y"}]`,
		},
		{
			name:    "missing text and text_url",
			content: `[{"source_type": "irc", "citation": "IRC § 1"}]`,
		},
		{
			name:    "malformed json",
			content: `{"documents": }`,
		},
	}

	l := NewLoader(0, zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, tt.content)
			if _, err := l.LoadManifest(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolveFetchesText(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("fetched authority text"))
	}))
	defer srv.Close()

	l := NewLoader(5*time.Second, zerolog.Nop())

	doc := Document{Citation: "Pub 463", TextURL: srv.URL}
	if err := l.Resolve(context.Background(), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "fetched authority text" {
		t.Errorf("unexpected text %q", doc.Text)
	}

	inline := Document{Citation: "Pub 463", Text: "already present", TextURL: srv.URL}
	if err := l.Resolve(context.Background(), &inline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inline.Text != "already present" {
		t.Error("inline text should not be overwritten")
	}
	if hits != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", hits)
	}
}

func TestResolveRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewLoader(5*time.Second, zerolog.Nop())
	doc := Document{Citation: "Pub 463", TextURL: srv.URL}

	if err := l.Resolve(context.Background(), &doc); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if doc.Text != "" {
		t.Errorf("text should stay empty on failure, got %q", doc.Text)
	}
}

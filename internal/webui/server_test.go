package webui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zenithu-s/book-downloader/internal/config"
	"github.com/zenithu-s/book-downloader/internal/pipeline"
	"github.com/zenithu-s/book-downloader/internal/testutil"
)

func setupTestServer(t *testing.T, archiveURL string) (*Server, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Output: filepath.Join(t.TempDir(), "books"),
		Sources: config.SourcesConfig{
			Priority:      []string{"archive", "gutenberg", "standard"},
			ArchiveURL:    archiveURL,
			GutendexURL:   archiveURL,
			SearchTimeout: 5 * time.Second,
			ArchiveRows:   5,
		},
		Download: config.DownloadConfig{
			Retries:           1,
			BackoffInitial:    time.Millisecond,
			BackoffMax:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
			Timeout:           10 * time.Second,
			UserAgent:         config.UserAgent,
		},
		Convert:    config.ConvertConfig{Timeout: 60 * time.Second},
		Transcribe: config.TranscribeConfig{Model: "small", Timeout: time.Minute},
	}

	runner := pipeline.New(cfg, testutil.NewTestLogger(t))
	server := NewServer(runner, testutil.NewTestLogger(t))

	return server, cfg
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeRunResponse(t *testing.T, rec *httptest.ResponseRecorder) runResponse {
	t.Helper()

	var reply runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
	return reply
}

func TestHealthCheck(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("HealthCheck status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("HealthCheck status = %q, want %q", response["status"], "ok")
	}
}

func TestIndexServed(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Index status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q, want text/html", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Book Downloader") {
		t.Error("index page missing expected content")
	}
}

func TestSearchRequiresTitle(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	rec := postJSON(t, s, "/api/search", `{"author": "Melville"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Search status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchUnknownSite(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	rec := postJSON(t, s, "/api/search", `{"title": "Moby Dick", "sites": ["libgen"]}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Search status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchGroupsBySource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/advancedsearch.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"docs":[{"identifier":"item-1","title":"Moby Dick","creator":"Herman Melville"}]}}`)
	})
	mux.HandleFunc("/metadata/item-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"files":[{"name":"moby.pdf","format":"Text PDF"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, _ := setupTestServer(t, srv.URL)

	// All sources enabled: archive finds one result, gutendex gets a 404
	// from the stub and must degrade into the errors map.
	rec := postJSON(t, s, "/api/search", `{"title": "Moby Dick"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Search status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var reply searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	archive := reply.Results["archive"]
	if len(archive) != 1 {
		t.Fatalf("archive results = %d, want 1", len(archive))
	}
	if archive[0].Title != "Moby Dick" {
		t.Errorf("archive result title = %q, want Moby Dick", archive[0].Title)
	}
	if !archive[0].HasFormat("pdf") {
		t.Error("archive result missing pdf format")
	}

	if _, ok := reply.Errors["gutenberg"]; !ok {
		t.Error("expected a gutenberg entry in the errors map")
	}
}

func TestDownloadRequiresInput(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	rec := postJSON(t, s, "/api/download", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Download status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	reply := decodeRunResponse(t, rec)
	if reply.OK {
		t.Error("reply.OK = true, want false")
	}
	if reply.Kind != "invalid-input" {
		t.Errorf("reply.Kind = %q, want invalid-input", reply.Kind)
	}
}

func TestDownloadUnknownSource(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	rec := postJSON(t, s, "/api/download", `{"source": "libgen", "url": "http://example.com/book.pdf"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Download status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	reply := decodeRunResponse(t, rec)
	if reply.Kind != "invalid-input" {
		t.Errorf("reply.Kind = %q, want invalid-input", reply.Kind)
	}
}

func TestDownloadPickedResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/moby.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4\npicked result"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, cfg := setupTestServer(t, "http://127.0.0.1:0")

	body := fmt.Sprintf(
		`{"source": "archive", "title": "Moby Dick", "author": "Herman Melville", "url": %q}`,
		srv.URL+"/files/moby.pdf")
	rec := postJSON(t, s, "/api/download", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("Download status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	reply := decodeRunResponse(t, rec)
	if !reply.OK {
		t.Fatalf("reply.OK = false, error = %q", reply.Error)
	}
	if reply.File != "Moby Dick - Herman Melville.pdf" {
		t.Errorf("reply.File = %q, want %q", reply.File, "Moby Dick - Herman Melville.pdf")
	}

	artifactPath := filepath.Join(cfg.Output, reply.File)
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("artifact missing PDF header")
	}
}

func TestDownloadFailureReportsKind(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	body := fmt.Sprintf(`{"source": "archive", "title": "Gone", "url": %q}`, srv.URL+"/gone.pdf")
	rec := postJSON(t, s, "/api/download", body)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Download status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	reply := decodeRunResponse(t, rec)
	if reply.OK {
		t.Error("reply.OK = true, want false")
	}
	if reply.Kind != "download-failed" {
		t.Errorf("reply.Kind = %q, want download-failed", reply.Kind)
	}
	if reply.Error == "" {
		t.Error("reply.Error is empty")
	}
}

// audiobookForm builds a multipart body with the given files and
// fields.
func audiobookForm(t *testing.T, files, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".txt")
		if err != nil {
			t.Fatalf("failed to create form file %s: %v", field, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write form file %s: %v", field, err)
		}
	}
	for field, value := range fields {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func TestAudiobookFromTranscriptUpload(t *testing.T) {
	s, cfg := setupTestServer(t, "http://127.0.0.1:0")

	body, contentType := audiobookForm(t,
		map[string]string{"transcript": "First paragraph.\n\nSecond paragraph."},
		map[string]string{"title": "My Memoir", "author": "Jane Tester"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/audiobook", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Audiobook status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	reply := decodeRunResponse(t, rec)
	if !reply.OK {
		t.Fatalf("reply.OK = false, error = %q", reply.Error)
	}
	if reply.File != "My Memoir - Jane Tester.pdf" {
		t.Errorf("reply.File = %q, want %q", reply.File, "My Memoir - Jane Tester.pdf")
	}

	data, err := os.ReadFile(filepath.Join(cfg.Output, reply.File))
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("artifact missing PDF header")
	}
}

func TestAudiobookRequiresFile(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	body, contentType := audiobookForm(t, nil, map[string]string{"title": "No Files"})

	req := httptest.NewRequest(http.MethodPost, "/api/audiobook", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Audiobook status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	reply := decodeRunResponse(t, rec)
	if reply.Kind != "invalid-input" {
		t.Errorf("reply.Kind = %q, want invalid-input", reply.Kind)
	}
}

func TestAudiobookAudioWithoutWhisper(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	body, contentType := audiobookForm(t,
		map[string]string{"audio": "fake audio bytes"},
		map[string]string{"use_whisper": "0"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/audiobook", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Audiobook status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	reply := decodeRunResponse(t, rec)
	if reply.Kind != "transcription-unavailable" {
		t.Errorf("reply.Kind = %q, want transcription-unavailable", reply.Kind)
	}
}

func TestServeArtifact(t *testing.T) {
	s, cfg := setupTestServer(t, "http://127.0.0.1:0")

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		t.Fatalf("failed to create output dir: %v", err)
	}
	testutil.WriteFile(t, cfg.Output, "Moby Dick.pdf", "%PDF-1.4\ncontent")

	req := httptest.NewRequest(http.MethodGet, "/downloads/Moby%20Dick.pdf", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ServeArtifact status = %d, want %d", rec.Code, http.StatusOK)
	}
	if disposition := rec.Header().Get("Content-Disposition"); !strings.Contains(disposition, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", disposition)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Error("served file missing PDF header")
	}
}

func TestServeArtifactMissing(t *testing.T) {
	s, _ := setupTestServer(t, "http://127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/downloads/nope.pdf", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("ServeArtifact status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServeArtifactRejectsTraversal(t *testing.T) {
	s, cfg := setupTestServer(t, "http://127.0.0.1:0")

	// Plant a file in the parent of the output dir; a traversal bug
	// would serve it.
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		t.Fatalf("failed to create output dir: %v", err)
	}
	parent := filepath.Dir(cfg.Output)
	testutil.WriteFile(t, parent, "secret.txt", "do not serve")

	for _, path := range []string{
		"/downloads/..%2Fsecret.txt",
		"/downloads/..",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.echo.ServeHTTP(rec, req)

		if rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "do not serve") {
			t.Errorf("GET %s served a file outside the output dir", path)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusNotFound)
		}
	}
}

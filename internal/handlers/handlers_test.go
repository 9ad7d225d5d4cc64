package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/docintel/internal/document"
	"github.com/lehigh-university-libraries/docintel/internal/extractor"
	"github.com/lehigh-university-libraries/docintel/internal/formatter"
	"github.com/lehigh-university-libraries/docintel/internal/models"
	"github.com/lehigh-university-libraries/docintel/internal/processor"
	"github.com/lehigh-university-libraries/docintel/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const licenseReply = `{"license_name": {"value": "MIT", "citations": [{"page": 0, "lines": [0]}]}}`

type stubParser struct {
	uri  string
	data []byte
}

func (p *stubParser) Parse(ctx context.Context, uri string) (*document.PDF, error) {
	p.uri = uri
	if data, err := os.ReadFile(uri); err == nil {
		p.data = data
	}
	return &document.PDF{Pages: []document.Page{{
		Width: 612, Height: 792,
		Lines: []document.Line{{Text: "MIT License", BoundingBox: document.BoundingBox{X0: 0.1, Top: 0.1, X1: 0.3, Bottom: 0.12}}},
	}}}, nil
}

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) GenerateText(ctx context.Context, req providers.Request) (string, error) {
	return s.reply, s.err
}

func newTestHandler(t *testing.T, llm *stubProvider) (*Handler, *stubParser) {
	t.Helper()
	p := &stubParser{}
	h := NewWithFactories(
		func(name string) (providers.Provider, error) {
			if name == "bogus" {
				return nil, errors.New("unsupported provider: bogus")
			}
			return llm, nil
		},
		func(uri string, prov providers.Provider) *processor.DocumentProcessor {
			return &processor.DocumentProcessor{
				Parser:    p,
				Formatter: formatter.NewDigitalPDFFormatter(),
				Extractor: extractor.NewDigitalPDFExtractor(prov),
				Document:  document.New(uri),
			}
		},
	)
	h.uploadsDir = t.TempDir()
	return h, p
}

func multipartRequest(t *testing.T, fields map[string]string, fileData []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileData != nil {
		fw, err := mw.CreateFormFile("file", "license.pdf")
		require.NoError(t, err)
		_, err = fw.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) models.ExtractionSession {
	t.Helper()
	var s models.ExtractionSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s), rec.Body.String())
	return s
}

func TestHandleExtractUpload(t *testing.T) {
	h, p := newTestHandler(t, &stubProvider{reply: licenseReply})

	rec := httptest.NewRecorder()
	h.HandleExtract(rec, multipartRequest(t, map[string]string{"preset": "license", "effort": "low"}, []byte("%PDF-1.4 fake")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decodeSession(t, rec)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "license.pdf", s.Filename)
	assert.Equal(t, "low", s.Effort)
	assert.True(t, s.Citations)
	assert.Equal(t, map[string]any{"license_name": "MIT"}, s.Data)
	require.Len(t, s.Metadata["license_name"].Citations, 1)
	assert.Equal(t, 0, s.Metadata["license_name"].Citations[0].Page)

	// the parser read the saved upload, which is gone afterwards
	assert.Equal(t, []byte("%PDF-1.4 fake"), p.data)
	assert.True(t, strings.HasSuffix(p.uri, ".pdf"))
	entries, err := os.ReadDir(h.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stored, ok := h.sessionStore.Get(s.ID)
	require.True(t, ok)
	assert.False(t, stored.Failed())
}

func TestHandleExtractURL(t *testing.T) {
	h, p := newTestHandler(t, &stubProvider{reply: `{"license_name": "MIT"}`})

	body := `{"url": "https://example.com/files/doc.pdf?dl=1", "schema": {"license_name": "str"}, "include_citations": false}`
	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleExtract(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decodeSession(t, rec)
	assert.Equal(t, "https://example.com/files/doc.pdf?dl=1", p.uri)
	assert.Equal(t, "doc.pdf", s.Filename)
	assert.False(t, s.Citations)
	assert.Nil(t, s.Metadata)
	assert.Equal(t, "MIT", s.Data["license_name"])
}

func TestHandleExtractBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantBody string
	}{
		{
			name: "empty schema upload",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, nil, []byte("%PDF"))
			},
			wantCode: http.StatusBadRequest,
			wantBody: "schema cannot be empty",
		},
		{
			name: "empty schema object",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"url": "https://example.com/a.pdf", "schema": {}}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
			wantBody: "schema cannot be empty",
		},
		{
			name: "invalid schema",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"schema": `{"a": `}, []byte("%PDF"))
			},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid schema",
		},
		{
			name: "missing url",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"preset": "license"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
			wantBody: "url is required",
		},
		{
			name: "local path url",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"url": "/etc/passwd", "preset": "license"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
			wantBody: "url must be an http or https URL",
		},
		{
			name: "file scheme url",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"url": "file:///etc/passwd", "preset": "license"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
			wantBody: "url must be an http or https URL",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"preset": "license"}, nil)
			},
			wantCode: http.StatusBadRequest,
			wantBody: "Failed to read file",
		},
		{
			name: "bad effort",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"preset": "license", "effort": "extreme"}, []byte("%PDF"))
			},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid reasoning effort",
		},
		{
			name: "bad page numbers",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"preset": "license", "page_numbers": "0,x"}, []byte("%PDF"))
			},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid page number",
		},
		{
			name: "unknown provider",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, map[string]string{"preset": "license", "provider": "bogus"}, []byte("%PDF"))
			},
			wantCode: http.StatusBadRequest,
			wantBody: "unsupported provider",
		},
		{
			name: "wrong method",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/extract", nil)
			},
			wantCode: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p := newTestHandler(t, &stubProvider{reply: licenseReply})
			rec := httptest.NewRecorder()
			h.HandleExtract(rec, tt.req(t))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Empty(t, p.uri, "document should not be opened")
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Empty(t, h.sessionStore.List())
		})
	}
}

// hookParser runs before on every parse, then reads the document from disk.
type hookParser struct {
	before func(uri string)
}

func (p *hookParser) Parse(ctx context.Context, uri string) (*document.PDF, error) {
	p.before(uri)
	if _, err := os.ReadFile(uri); err != nil {
		return nil, err
	}
	return &document.PDF{Pages: []document.Page{{
		Width: 612, Height: 792,
		Lines: []document.Line{{Text: "MIT License", BoundingBox: document.BoundingBox{X0: 0.1, Top: 0.1, X1: 0.3, Bottom: 0.12}}},
	}}}, nil
}

func TestHandleExtractOverlappingIdenticalUploads(t *testing.T) {
	llm := &stubProvider{reply: licenseReply}
	data := []byte("%PDF-same-bytes")

	var (
		h      *Handler
		inner  *httptest.ResponseRecorder
		parsed []string
	)
	parser := &hookParser{}
	// the first parse starts a second upload of the same bytes, which
	// finishes (and cleans up) before the first one reads its file
	parser.before = func(uri string) {
		parsed = append(parsed, uri)
		if inner == nil {
			inner = httptest.NewRecorder()
			h.HandleExtract(inner, multipartRequest(t, map[string]string{"preset": "license"}, data))
		}
	}
	h = NewWithFactories(
		func(name string) (providers.Provider, error) { return llm, nil },
		func(uri string, prov providers.Provider) *processor.DocumentProcessor {
			return &processor.DocumentProcessor{
				Parser:    parser,
				Formatter: formatter.NewDigitalPDFFormatter(),
				Extractor: extractor.NewDigitalPDFExtractor(prov),
				Document:  document.New(uri),
			}
		},
	)
	h.uploadsDir = t.TempDir()

	outer := httptest.NewRecorder()
	h.HandleExtract(outer, multipartRequest(t, map[string]string{"preset": "license"}, data))

	require.NotNil(t, inner)
	assert.Equal(t, http.StatusOK, inner.Code, inner.Body.String())
	assert.Equal(t, http.StatusOK, outer.Code, outer.Body.String())
	require.Len(t, parsed, 2)
	assert.NotEqual(t, parsed[0], parsed[1])

	entries, err := os.ReadDir(h.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleExtractFailureStoresSession(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{err: errors.New("upstream exploded")})

	rec := httptest.NewRecorder()
	h.HandleExtract(rec, multipartRequest(t, map[string]string{"preset": "license"}, []byte("%PDF")))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	s := decodeSession(t, rec)
	assert.Contains(t, s.Error, "upstream exploded")

	sessions := h.sessionStore.List()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Failed())
}

func TestHandleSessions(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{reply: licenseReply})
	rec := httptest.NewRecorder()
	h.HandleExtract(rec, multipartRequest(t, map[string]string{"preset": "license"}, []byte("%PDF")))
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeSession(t, rec).ID

	rec = httptest.NewRecorder()
	h.HandleSessions(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.ExtractionSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeSession(t, rec).ID)

	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleSessions(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlePresets(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	rec := httptest.NewRecorder()
	h.HandlePresets(rec, httptest.NewRequest(http.MethodGet, "/api/presets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Contains(t, all, "license")
	assert.Contains(t, all, "invoice")
	assert.Contains(t, all["license"], "license_name")

	rec = httptest.NewRecorder()
	h.HandlePresets(rec, httptest.NewRequest(http.MethodGet, "/api/presets/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "full_name")

	rec = httptest.NewRecorder()
	h.HandlePresets(rec, httptest.NewRequest(http.MethodGet, "/api/presets/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatic(t *testing.T) {
	h, p := newTestHandler(t, &stubProvider{reply: licenseReply})

	rec := httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>docintel</title>")

	rec = httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/static/../go.mod", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/?url=https://example.com/a.pdf&preset=license", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/?session="))
	assert.Equal(t, "https://example.com/a.pdf", p.uri)
	assert.Len(t, h.sessionStore.List(), 1)

	// only http(s) documents can be requested from the page URL
	p.uri = ""
	rec = httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/?url=/etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.uri)
	assert.Len(t, h.sessionStore.List(), 1)
}

func TestParsePageNumbers(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"0", []int{0}, false},
		{"0, 2,5", []int{0, 2, 5}, false},
		{"1,,3", []int{1, 3}, false},
		{"a", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePageNumbers(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/siteobserver/internal/analysis"
	"github.com/lehigh-university-libraries/siteobserver/internal/imaging"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/prompts"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
	"github.com/lehigh-university-libraries/siteobserver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	mu    sync.Mutex
	reply map[string]string
	fail  bool
	calls int
}

func (m *scriptedModel) Complete(ctx context.Context, req providers.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return "", fmt.Errorf("%w: openai: connection refused", models.ErrGeneration)
	}
	return m.reply[req.System], nil
}

type testServer struct {
	handler http.Handler
	model   *scriptedModel
	dir     string
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	model := &scriptedModel{reply: map[string]string{
		prompts.KeywordSystemPrompt: "No Helmet, No Helmet, Trip Hazard",
		prompts.SafetyAnalystPolicy: "A worker is not wearing a helmet.",
		prompts.ChatSystemPrompt:    "The worker is near the ladder.",
	}}
	dir := filepath.Join(t.TempDir(), "temp_images")
	svc := analysis.NewService(imaging.NewNormalizer(dir, 0, 0), prompts.New(nil), model, storage.New())
	h := New(svc, maxUpload)
	return &testServer{
		handler: h.Routes([]string{"http://localhost:3000"}),
		model:   model,
		dir:     dir,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func analyzeRequest(t *testing.T, filename, contentType string, data []byte, keyword string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if keyword != "" {
		require.NoError(t, mw.WriteField("keyword", keyword))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(t *testing.T, sessionID, message string) *http.Request {
	t.Helper()
	body, err := json.Marshal(models.ChatRequest{SessionID: sessionID, Message: message})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAnalyzeChatDeleteFlow(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(analyzeRequest(t, "site.png", "image/png", samplePNG(t), ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	analyzed := decode[models.AnalysisResponse](t, rec)
	assert.Equal(t, []string{"no helmet", "trip hazard"}, analyzed.Keywords)
	assert.Equal(t, "A worker is not wearing a helmet.", analyzed.Description)

	_, err := os.Stat(filepath.Join(s.dir, analyzed.SessionID+".png"))
	require.NoError(t, err)

	rec = s.do(chatRequest(t, analyzed.SessionID, "Where is the worker?"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	chat := decode[models.ChatResponse](t, rec)
	assert.Equal(t, "The worker is near the ladder.", chat.Response)
	require.Len(t, chat.ChatHistory, 2)
	assert.Equal(t, models.RoleUser, chat.ChatHistory[0].Role)
	assert.Equal(t, models.RoleAssistant, chat.ChatHistory[1].Role)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/session/"+analyzed.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"message": "Session deleted successfully"}, decode[map[string]string](t, rec))

	_, err = os.Stat(filepath.Join(s.dir, analyzed.SessionID+".png"))
	assert.True(t, os.IsNotExist(err))

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/session/"+analyzed.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(chatRequest(t, analyzed.SessionID, "Still there?"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[errorResponse](t, rec).Detail)
}

func TestAnalyzeWireFormat(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(analyzeRequest(t, "site.png", "image/png", samplePNG(t), "Blocked Exit"))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.ElementsMatch(t, []string{"session_id", "keywords", "description"}, keys(raw))
	assert.Equal(t, []any{"blocked exit"}, raw["keywords"])
	assert.Equal(t, 1, s.model.calls, "user keyword skips the proposal")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestAnalyzeBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		maxUpload   int64
		detail      string
	}{
		{
			name:        "gif rejected",
			filename:    "site.gif",
			contentType: "image/gif",
			data:        []byte("GIF89a"),
			detail:      "Only JPG and PNG images are supported",
		},
		{
			name:   "missing file",
			detail: "Failed to read image",
		},
		{
			name:        "too large",
			filename:    "site.png",
			contentType: "image/png",
			data:        bytes.Repeat([]byte{0}, 2048),
			maxUpload:   1024,
			detail:      "File too large",
		},
		{
			name:        "not an image",
			filename:    "site.jpg",
			contentType: "image/jpeg",
			data:        []byte("definitely not a jpeg"),
			detail:      "decode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.maxUpload)
			rec := s.do(analyzeRequest(t, tt.filename, tt.contentType, tt.data, ""))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[errorResponse](t, rec).Detail, tt.detail)
			assert.Equal(t, 0, s.model.calls)

			entries, _ := os.ReadDir(s.dir)
			assert.Empty(t, entries)
		})
	}
}

func TestAnalyzeGenerationFailure(t *testing.T) {
	s := newTestServer(t, 0)
	s.model.fail = true

	rec := s.do(analyzeRequest(t, "site.png", "image/png", samplePNG(t), ""))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Detail, "connection refused")

	entries, _ := os.ReadDir(s.dir)
	assert.Empty(t, entries)
}

func TestChatBadRequests(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(chatRequest(t, "unknown", "hello"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(chatRequest(t, "unknown", "  "))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(analyzeRequest(t, "site.png", "image/png", samplePNG(t), "no vest"))
	require.Equal(t, http.StatusOK, rec.Code)
	analyzed := decode[models.AnalysisResponse](t, rec)

	rec = s.do(chatRequest(t, analyzed.SessionID, "  "))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatGenerationFailure(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(analyzeRequest(t, "site.png", "image/png", samplePNG(t), "no vest"))
	require.Equal(t, http.StatusOK, rec.Code)
	analyzed := decode[models.AnalysisResponse](t, rec)

	s.model.fail = true
	rec = s.do(chatRequest(t, analyzed.SessionID, "Is anyone wearing a vest?"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	s.model.fail = false
	rec = s.do(chatRequest(t, analyzed.SessionID, "Is anyone wearing a vest?"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.ChatResponse](t, rec).ChatHistory, 2, "failed turn was not recorded")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "healthy"}, decode[map[string]string](t, rec))
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, 0)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	preflight.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := s.do(preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	get := httptest.NewRequest(http.MethodGet, "/health", nil)
	get.Header.Set("Origin", "http://localhost:3000")
	rec = s.do(get)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = s.do(other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bad: %w", models.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("gone: %w", models.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("model: %w", models.ErrGeneration), http.StatusBadGateway},
		{fmt.Errorf("disk: %w", models.ErrResource), http.StatusInternalServerError},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

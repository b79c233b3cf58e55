package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/ai"
	"studyhub/internal/bootstrap"
	"studyhub/internal/config"
	"studyhub/internal/observability"
	"studyhub/internal/pkg/jwtutil"
	"studyhub/internal/platform/logger"
	"studyhub/internal/repository/repotest"
)

const (
	testSecret = "router-secret"
	material   = "Photosynthesis converts light energy into chemical energy. " +
		"Chlorophyll in the chloroplast absorbs mostly blue and red light. " +
		"The Calvin cycle fixes carbon dioxide into sugars using ATP and NADPH."
	quizReply = `[{"question":"Where does photosynthesis happen?","type":"multiple_choice",
"options":["A) Nucleus","B) Chloroplast"],"correctAnswer":"B","explanation":"Chloroplasts."},
{"question":"The Calvin cycle fixes carbon dioxide.","type":"true_false","correctAnswer":true}]`
)

type stubModel struct{}

func (stubModel) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

func (stubModel) Complete(_ context.Context, msgs []ai.ChatMessage) (string, error) {
	return "Chloroplasts [Source 1].", nil
}

func (stubModel) Generate(context.Context, string) (string, error) { return quizReply, nil }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t        *testing.T
	app      *bootstrap.App
	router   http.Handler
	token    string
	outsider string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Name: "studyhub", Env: "test", GinMode: "test"},
		Auth:      config.AuthConfig{JWTSecret: testSecret},
		LLM:       config.LLMConfig{EmbeddingModel: "stub-embed"},
		Ingest:    config.IngestConfig{UploadDir: t.TempDir(), MaxUploadMB: 1, ChunkSize: 1000, ChunkOverlap: 200},
		Retrieval: config.RetrievalConfig{TopK: 5, SampleMinChars: 100},
	}
	log := logger.Nop()
	metrics := observability.NewMetrics()
	a := &bootstrap.App{
		Config:    cfg,
		Log:       log,
		Metrics:   metrics,
		StartedAt: time.Now(),
		Services: bootstrap.NewServices(bootstrap.ServiceDeps{
			DB:        repotest.NewDB(t),
			Config:    cfg,
			Log:       log,
			Metrics:   metrics,
			Embedder:  stubModel{},
			Completer: stubModel{},
			Generator: stubModel{},
		}),
	}
	token, err := jwtutil.GenerateToken(testSecret, 1, "ada", time.Hour)
	require.NoError(t, err)
	outsider, err := jwtutil.GenerateToken(testSecret, 2, "eve", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, app: a, router: NewRouter(a), token: token, outsider: outsider}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, token)
}

func (s *testServer) upload(name, content string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", name)
	require.NoError(s.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(req, s.token)
}

func (s *testServer) send(req *http.Request, token string) (int, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(http.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40100, env.Code)
}

func TestRouter_UploadValidation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.upload("slides.pptx", "x")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40010, env.Code)

	code, env = s.upload("big.txt", strings.Repeat("a", 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, 40011, env.Code)
}

func TestRouter_StudyFlow(t *testing.T) {
	s := newTestServer(t)

	code, env := s.upload("biology.txt", material)
	require.Equal(t, http.StatusOK, code, env.Message)
	doc := decode[struct {
		ID               uint   `json:"id"`
		OriginalName     string `json:"original_name"`
		ProcessingStatus string `json:"processing_status"`
	}](t, env)
	assert.Equal(t, "biology.txt", doc.OriginalName)
	assert.Equal(t, "pending", doc.ProcessingStatus)
	s.app.WaitBackground()

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", doc.ID), s.token, nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[struct {
		ProcessingStatus string  `json:"processing_status"`
		ChunkCount       int64   `json:"chunk_count"`
		Coverage         float64 `json:"coverage"`
	}](t, env)
	assert.Equal(t, "completed", detail.ProcessingStatus)
	assert.Equal(t, int64(1), detail.ChunkCount)
	assert.InDelta(t, 1.0, detail.Coverage, 1e-9)

	code, _ = s.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", doc.ID), s.outsider, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(http.MethodPost, "/api/v1/chat/ask", s.token, map[string]string{"question": "Where?"})
	require.Equal(t, http.StatusOK, code)
	answer := decode[struct {
		Content   string `json:"content"`
		Citations []struct {
			DocumentName string `json:"document_name"`
		} `json:"citations"`
	}](t, env)
	assert.Equal(t, "Chloroplasts [Source 1].", answer.Content)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "biology.txt", answer.Citations[0].DocumentName)

	code, env = s.do(http.MethodPost, "/api/v1/chat/sessions", s.token, map[string]string{"title": "Bio"})
	require.Equal(t, http.StatusOK, code)
	session := decode[struct{ ID uint }](t, env)

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/chat/sessions/%d/messages", session.ID), s.token, map[string]string{"content": "Where?"})
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/chat/sessions/%d/messages", session.ID), s.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env), 2)

	code, env = s.do(http.MethodPost, "/api/v1/quiz/generate", s.token, map[string]interface{}{"title": "Photosynthesis", "question_count": 2})
	require.Equal(t, http.StatusOK, code, env.Message)
	quiz := decode[struct {
		ID        uint `json:"id"`
		Questions []struct {
			ID            uint   `json:"id"`
			CorrectAnswer string `json:"correct_answer"`
		} `json:"questions"`
	}](t, env)
	require.Len(t, quiz.Questions, 2)
	assert.NotContains(t, string(env.Data), "correctAnswer")
	assert.NotContains(t, string(env.Data), "correct_answer")

	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/quiz/blueprints/%d/attempt", quiz.ID), s.token, map[string]interface{}{
		"answers":    map[string]string{fmt.Sprint(quiz.Questions[0].ID): "B", fmt.Sprint(quiz.Questions[1].ID): "False"},
		"time_taken": 30,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	grade := decode[struct {
		Score        int `json:"score"`
		CorrectCount int `json:"correct_count"`
	}](t, env)
	assert.Equal(t, 50, grade.Score)
	assert.Equal(t, 1, grade.CorrectCount)

	code, env = s.do(http.MethodGet, "/api/v1/topics/mastery", s.token, nil)
	require.Equal(t, http.StatusOK, code)
	topics := decode[[]struct {
		Topic        string  `json:"topic"`
		MasteryLevel float64 `json:"mastery_level"`
	}](t, env)
	require.Len(t, topics, 1)
	assert.Equal(t, "Photosynthesis", topics[0].Topic)
	assert.InDelta(t, 0.5, topics[0].MasteryLevel, 1e-9)

	code, env = s.do(http.MethodGet, "/api/v1/quiz/attempts", s.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"quiz_title":"Photosynthesis"`)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", doc.ID), s.token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodPost, "/api/v1/chat/ask", s.token, map[string]string{"question": "Where?"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "I don't have any relevant study materials")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.send(httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/ingestion/pdftest"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/llm/llmtest"
	"github.com/jonathan/candidate-intake/internal/server/middleware"
	"github.com/jonathan/candidate-intake/internal/server/ratelimit"
	"github.com/jonathan/candidate-intake/internal/store"
)

const (
	experiencePrompt = "Extract only the real professional experience"
	questionsPrompt  = "create exactly 5 customized"
	behavioralPrompt = "behavioral evaluation questions"
	analysisPrompt   = "You are an expert recruiter"

	acmeExperience = `{"Experience":[{"Role":"Software Engineer","Company":"Acme","Location":"","Dates":"2020-2022","Responsibilities":[]}],"Projects":[],"Roles":["Software Engineer"]}`
	acmeQuestions  = `{"questions":[{"question":"Q1","basedOn":"Acme","options":["Option A","Option B","Option C","Option D"]}]}`
	acmeAnalysis   = `{"loyaltyPercent":80,"emotionalIQPercent":70,"companyGrowthPercent":65,"resultsFocusPercent":90,"averageResponseTime":7.5,"instinctivenessScore":"Instinctive","overallAnalysis":"Decisive engineer.","desirabilityScore":82}`
	customized     = `[{"question":"Q1","basedOn":"Acme","selectedAnswer":"Option A"}]`
	behavioral     = `[{"question":"How do you handle conflict?","answer":"Talk it through","responseTime":7.5}]`
)

func acmeClient() *llmtest.Client {
	return llmtest.New().
		Handle(experiencePrompt, acmeExperience).
		Handle(questionsPrompt, acmeQuestions).
		Handle(behavioralPrompt, acmeQuestions).
		Handle(analysisPrompt, acmeAnalysis)
}

type testServer struct {
	*Server
	store      *store.FileStore
	client     *llmtest.Client
	answersDir string
}

func newTestServer(t *testing.T, client *llmtest.Client, rl *ratelimit.Config) *testServer {
	t.Helper()
	root := t.TempDir()

	st, err := store.NewFileStore(filepath.Join(root, "outputs"))
	require.NoError(t, err)
	answersDir := filepath.Join(root, "BehaviourJSON")
	sink, err := store.NewDirSink(answersDir)
	require.NoError(t, err)

	retrier := llm.NewRetrier(client, llm.RetryPolicy{MaxAttempts: 1, Timeout: 5 * time.Second})
	svc := assessment.NewService(st, sink, retrier, assessment.Options{})

	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	s, err := New(Config{Port: 0, MaxUploadBytes: 1 << 20, RateLimit: rl}, svc)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &testServer{Server: s, store: st, client: client, answersDir: answersDir}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, path, sessionID, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("resume", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	return req
}

func sessionRequest(method, path, sessionID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(middleware.SessionHeader, sessionID)
	return req
}

func (ts *testServer) upload(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	w := ts.do(t, uploadRequest(t, "/upload", id, "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func (ts *testServer) report(t *testing.T, id string) map[string]json.RawMessage {
	t.Helper()
	w := ts.do(t, sessionRequest(http.MethodGet, "/report", id, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestNew_InvalidRateLimitPattern(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	rl := &ratelimit.Config{Enabled: true, EndpointConfigs: []ratelimit.EndpointConfig{{Pattern: "", Limit: 1}}}
	_, err := New(Config{RateLimit: rl}, ts.service)
	assert.ErrorContains(t, err, "invalid rate limit pattern")
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := uuid.NewString()

	w := ts.do(t, uploadRequest(t, "/upload", id, "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, "experience", string(resp.Phase))

	doc := ts.report(t, id)
	assert.JSONEq(t, acmeExperience, string(doc["parsedExperience"]))
	assert.JSONEq(t, acmeQuestions, string(doc["customizedQuestions"]))
}

func TestUpload_IssuesSessionCookie(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, uploadRequest(t, "/upload", "", "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cookie.Value, resp.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.AddCookie(cookie)
	w = ts.do(t, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpload_NonPDF(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := ts.upload(t)
	before := ts.report(t, id)

	w := ts.do(t, uploadRequest(t, "/upload", id, "notes.txt", []byte("just some notes")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, KindExtraction, resp.Kind)
	assert.NotEmpty(t, resp.Error)

	assert.Equal(t, before, ts.report(t, id))
}

func TestUpload_MissingFile(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	req := sessionRequest(http.MethodPost, "/upload", uuid.NewString(), strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w := ts.do(t, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, KindInvalidInput, decodeError(t, w).Kind)
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, uploadRequest(t, "/upload", uuid.NewString(), "big.pdf", bytes.Repeat([]byte("a"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, KindTooLarge, decodeError(t, w).Kind)
}

func TestUpload_UpstreamFailure(t *testing.T) {
	client := llmtest.New().Fail(experiencePrompt, errors.New("connection reset"))
	ts := newTestServer(t, client, nil)

	w := ts.do(t, uploadRequest(t, "/upload", uuid.NewString(), "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, KindUpstream, decodeError(t, w).Kind)
}

func TestUploadStream(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := uuid.NewString()

	w := ts.do(t, uploadRequest(t, "/upload/stream", id, "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseEvents(t, w.Body.String())
	require.Len(t, events, len(assessment.UploadSteps)+1)
	for i, step := range assessment.UploadSteps {
		assert.Equal(t, "step", events[i].name)
		assert.Equal(t, step, events[i].data["step"])
	}
	last := events[len(events)-1]
	assert.Equal(t, "complete", last.name)
	assert.Equal(t, id, last.data["sessionId"])
}

func TestUploadStream_ErrorEvent(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, uploadRequest(t, "/upload/stream", uuid.NewString(), "notes.txt", []byte("plain text")))
	events := parseEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Equal(t, KindExtraction, events[0].data["kind"])
}

type sseEvent struct {
	name string
	data map[string]any
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data))
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestReport_NotFound(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, sessionRequest(http.MethodGet, "/report", uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Report not found", resp.Message)
	assert.Equal(t, KindNotFound, resp.Kind)
}

func TestSaveCustomized(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := ts.upload(t)
	before := ts.report(t, id)

	w := ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(customized)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.File, "finalCustomizedAnswers_"+id+"_"), resp.File)
	assert.FileExists(t, filepath.Join(ts.answersDir, resp.File))

	after := ts.report(t, id)
	assert.JSONEq(t, customized, string(after["customizedAnswers"]))
	assert.JSONEq(t, string(before["parsedExperience"]), string(after["parsedExperience"]))
	assert.JSONEq(t, string(before["customizedQuestions"]), string(after["customizedQuestions"]))
	assert.JSONEq(t, `"behavioral"`, string(after["phase"]))
}

func TestSaveCustomized_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := ts.upload(t)

	for _, body := range []string{`{"oops"`, `{"question":"Q1"}`} {
		w := ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(body)))
		assert.Equal(t, http.StatusInternalServerError, w.Code, body)
		resp := decodeError(t, w)
		assert.Equal(t, KindInvalidInput, resp.Kind)
		assert.Contains(t, resp.Error, "invalid")
	}
	_, ok := ts.report(t, id)["customizedAnswers"]
	assert.False(t, ok)
}

func TestSaveAnswers_AcceptsAnyList(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := ts.upload(t)

	w := ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(`[]`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	partial := `[{"question":"How do you handle conflict?","answer":"Talk it through"}]`
	w = ts.do(t, sessionRequest(http.MethodPost, "/save-behavior-json", id, strings.NewReader(partial)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := ts.report(t, id)
	assert.JSONEq(t, `[]`, string(doc["customizedAnswers"]))
	assert.JSONEq(t, partial, string(doc["behavioralAnswers"]))
}

func TestSaveCustomized_NoReport(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", uuid.NewString(), strings.NewReader(customized)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveBehavior(t *testing.T) {
	for _, path := range []string{"/save-behavior-json", "/analyze-behavior"} {
		t.Run(path, func(t *testing.T) {
			ts := newTestServer(t, acmeClient(), nil)
			id := ts.upload(t)

			w := ts.do(t, sessionRequest(http.MethodPost, path, id, strings.NewReader(behavioral)))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			w = ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(customized)))
			require.Equal(t, http.StatusOK, w.Code)

			var resp SaveResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, strings.HasPrefix(resp.File, "finalBehaviorAnswers_"+id+"_"), resp.File)

			doc := ts.report(t, id)
			assert.JSONEq(t, behavioral, string(doc["behavioralAnswers"]))
			assert.JSONEq(t, customized, string(doc["customizedAnswers"]))
			assert.JSONEq(t, `"summary"`, string(doc["phase"]))
		})
	}
}

func TestFinalReport(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := ts.upload(t)

	w := ts.do(t, sessionRequest(http.MethodGet, "/final-report", id, nil))
	require.Equal(t, http.StatusOK, w.Code, "analysis runs over whatever answers are stored")

	ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(customized)))
	ts.do(t, sessionRequest(http.MethodPost, "/save-behavior-json", id, strings.NewReader(behavioral)))

	w = ts.do(t, sessionRequest(http.MethodGet, "/final-report", id, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, acmeAnalysis, w.Body.String())

	doc := ts.report(t, id)
	_, stored := doc["finalAnalysis"]
	assert.False(t, stored, "analysis is not persisted")
}

func TestFinalReport_Malformed(t *testing.T) {
	client := llmtest.New().
		Handle(experiencePrompt, acmeExperience).
		Handle(questionsPrompt, acmeQuestions).
		Handle(analysisPrompt, "I cannot score this candidate.")
	ts := newTestServer(t, client, nil)
	id := ts.upload(t)
	ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", id, strings.NewReader(customized)))
	ts.do(t, sessionRequest(http.MethodPost, "/save-behavior-json", id, strings.NewReader(behavioral)))

	w := ts.do(t, sessionRequest(http.MethodGet, "/final-report", id, nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, KindMalformed, decodeError(t, w).Kind)
}

func TestBehaviorQuestions(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := uuid.NewString()

	w := ts.do(t, sessionRequest(http.MethodGet, "/behavior-questions", id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var bank struct {
		Questions []json.RawMessage `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bank))
	assert.Len(t, bank.Questions, len(assessment.DefaultBehavioralQuestions().Questions))
	assert.Zero(t, ts.client.Calls(behavioralPrompt))

	w = ts.do(t, sessionRequest(http.MethodGet, "/behavior-questions?generate=true", id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	id = ts.upload(t)
	w = ts.do(t, sessionRequest(http.MethodGet, "/behavior-questions?generate=true", id, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, acmeQuestions, w.Body.String())

	w = ts.do(t, sessionRequest(http.MethodGet, "/behavior-questions?generate=maybe", id, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	id := uuid.NewString()

	get := func() SessionResponse {
		w := ts.do(t, sessionRequest(http.MethodGet, "/session", id, nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := get()
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, "upload", string(resp.Phase))

	w := ts.do(t, uploadRequest(t, "/upload", id, "resume.pdf", pdftest.Build("Software Engineer at Acme, 2020-2022")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "experience", string(get().Phase))
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	a := ts.upload(t)
	b := ts.upload(t)

	w := ts.do(t, sessionRequest(http.MethodPost, "/save-customized-json", a, strings.NewReader(customized)))
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := ts.report(t, b)["customizedAnswers"]
	assert.False(t, ok)
}

func TestStaticClient(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Candidate Intake")

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)

	w := ts.do(t, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.SessionHeader)
	assert.Equal(t, middleware.SessionHeader, w.Header().Get("Access-Control-Expose-Headers"))
}

func TestRateLimit(t *testing.T) {
	rl := &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Pattern: "GET /session", Limit: 2, Window: time.Hour, Burst: 2},
		},
	}
	ts := newTestServer(t, acmeClient(), rl)
	id := uuid.NewString()

	for i := 0; i < 2; i++ {
		w := ts.do(t, sessionRequest(http.MethodGet, "/session", id, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := ts.do(t, sessionRequest(http.MethodGet, "/session", id, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp["error"])

	w = ts.do(t, sessionRequest(http.MethodGet, "/health", id, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t, acmeClient(), nil)
	ts.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/caseprep/internal/config"
	"github.com/terra-clan/caseprep/internal/evaluation"
	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/interview"
	"github.com/terra-clan/caseprep/internal/models"
	"github.com/terra-clan/caseprep/internal/session"
	"github.com/terra-clan/caseprep/internal/storage"
)

const (
	adminKey  = "sk_admin_0123456789"
	readerKey = "sk_reader_0123456789"
	lmsKey    = "sk_lms_0123456789"
)

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, systemPrompt string, history []interview.Turn) (string, error) {
	return "Tell me more about " + history[len(history)-1].Content, nil
}

type fixedScorer struct{}

func (fixedScorer) Evaluate(ctx context.Context, kase *models.Case, log []models.Message) (*models.Evaluation, error) {
	return &models.Evaluation{OverallScore: 81, Strengths: []string{"structure"}}, nil
}

type fixedAdvisor struct{}

func (fixedAdvisor) Coach(ctx context.Context, kase *models.Case, eval *models.Evaluation) (*models.Feedback, error) {
	return &models.Feedback{Summary: "Keep practicing math drills"}, nil
}

type testEnv struct {
	repo   *storage.MemoryRepository
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo := storage.NewMemoryRepository()
	require.NoError(t, repo.CreateClient(ctx, &models.ApiClient{Name: "admin", ApiKey: adminKey, IsActive: true, Permissions: []string{string(models.PermAll)}}))
	require.NoError(t, repo.CreateClient(ctx, &models.ApiClient{Name: "reader", ApiKey: readerKey, IsActive: true, Permissions: []string{string(models.PermCasesRead), string(models.PermSessionsRead)}}))
	require.NoError(t, repo.CreateClient(ctx, &models.ApiClient{Name: "lms", ApiKey: lmsKey, IsActive: true, Permissions: []string{"sessions:*"}}))
	require.NoError(t, repo.CreateClient(ctx, &models.ApiClient{Name: "retired", ApiKey: "sk_retired_0123", IsActive: false, Permissions: []string{"*"}}))
	require.NoError(t, repo.CreateCase(ctx, &models.Case{
		ID: "coffee", Title: "Coffee Chain", Prompt: "Profits fell.", CaseType: models.CaseConsulting,
		Exhibits: []models.Exhibit{{Title: "Revenue", Type: models.ExhibitTable, Data: []byte(`{"2024":179}`)}},
	}))

	h := hub.NewLocalHub()
	manager := session.NewManager(repo, h, nil, echoGenerator{}, session.Config{
		HistoryWindow: 10,
		ReplyTimeout:  time.Second,
		PublicURL:     "http://localhost:8080",
	})
	pipeline := evaluation.NewPipeline(repo, fixedScorer{}, fixedAdvisor{})

	srv := NewServer(
		config.ServerConfig{CORSOrigins: []string{"*"}},
		config.InterviewConfig{RateLimit: 100, RateBurst: 100},
		manager, pipeline, repo, h,
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{repo: repo, server: ts}
}

// do performs a request and decodes the envelope's data into out when given
func (e *testEnv) do(t *testing.T, method, path, key string, body interface{}, out interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *apiError       `json:"error"`
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	}
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}

	return resp.StatusCode, apiResponse{Success: raw.Success, Error: raw.Error}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	status, _ = env.do(t, http.MethodGet, "/ready", "", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	metrics, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		key    string
		method string
		path   string
		status int
		code   string
	}{
		{"missing key", "", http.MethodGet, "/api/v1/cases", http.StatusUnauthorized, ""},
		{"unknown key", "sk_nope_000000", http.MethodGet, "/api/v1/cases", http.StatusUnauthorized, ""},
		{"inactive client", "sk_retired_0123", http.MethodGet, "/api/v1/cases", http.StatusUnauthorized, ""},
		{"read allowed", readerKey, http.MethodGet, "/api/v1/cases", http.StatusOK, ""},
		{"write denied", readerKey, http.MethodPost, "/api/v1/sessions", http.StatusForbidden, ""},
		{"admin wildcard", adminKey, http.MethodGet, "/api/v1/sessions", http.StatusOK, ""},
		{"resource wildcard", lmsKey, http.MethodGet, "/api/v1/sessions", http.StatusOK, ""},
		{"resource wildcard other resource", lmsKey, http.MethodGet, "/api/v1/cases", http.StatusForbidden, ""},
		{"resource wildcard no evaluations", lmsKey, http.MethodGet, "/api/v1/sessions/any/evaluation", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.server.URL+tt.path, strings.NewReader(`{}`))
			require.NoError(t, err)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestCases(t *testing.T) {
	env := newTestEnv(t)

	var list struct {
		Cases []models.CaseSummary `json:"cases"`
		Total int                  `json:"total"`
	}
	status, _ := env.do(t, http.MethodGet, "/api/v1/cases", readerKey, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Cases[0].ExhibitsCount)

	created := models.Case{}
	status, _ = env.do(t, http.MethodPost, "/api/v1/cases", adminKey, models.CreateCaseRequest{
		ID:       "airline",
		Title:    "Airline Pricing",
		Prompt:   "Should the airline add a premium economy cabin?",
		CaseType: models.CaseConsulting,
		Exhibits: []models.Exhibit{{Title: "Load factor", Type: models.ExhibitPie}},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "api", created.Source)
	assert.Equal(t, "admin", created.CreatedBy)

	status, resp := env.do(t, http.MethodPost, "/api/v1/cases", adminKey, models.CreateCaseRequest{
		ID: "airline", Title: "Again", Prompt: "x", CaseType: models.CaseConsulting,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "case_exists", resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/api/v1/cases", adminKey, map[string]interface{}{
		"title": "No type", "prompt": "x", "case_type": "marketing",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "casetype")

	var got models.Case
	status, _ = env.do(t, http.MethodGet, "/api/v1/cases/airline", readerKey, nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Airline Pricing", got.Title)

	status, _ = env.do(t, http.MethodGet, "/api/v1/cases/missing", readerKey, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var created models.CreateSessionResponse
	status, _ := env.do(t, http.MethodPost, "/api/v1/sessions", adminKey,
		models.CreateSessionRequest{CaseID: "coffee", Mode: "interviewer_led"}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, created.Token, 48)
	assert.Equal(t, "http://localhost:8080/interview/"+created.Token, created.JoinURL)

	status, resp := env.do(t, http.MethodPost, "/api/v1/sessions", adminKey,
		models.CreateSessionRequest{CaseID: "missing", Mode: "interviewer_led"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "case_not_found", resp.Error.Code)

	status, _ = env.do(t, http.MethodPost, "/api/v1/sessions", adminKey,
		map[string]string{"case_id": "coffee", "mode": "group"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var join models.JoinSessionResponse
	status, _ = env.do(t, http.MethodGet, "/api/v1/join/"+created.Token, "", nil, &join)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.SessionNotStarted, join.Status)
	assert.Equal(t, "Coffee Chain", join.Case.Title)

	var sess models.InterviewSession
	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, readerKey, nil, &sess)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "framework", sess.CurrentPhase)

	status, resp = env.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/evaluate", adminKey, nil, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_completed", resp.Error.Code)

	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID+"/evaluation", adminKey, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, "/api/v1/sessions/"+created.ID, adminKey, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, readerKey, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/join/unknown-token", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func readFrame(t *testing.T, conn *websocket.Conn) hub.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev hub.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestInterviewWebSocket(t *testing.T) {
	env := newTestEnv(t)

	var created models.CreateSessionResponse
	status, _ := env.do(t, http.MethodPost, "/api/v1/sessions", adminKey,
		models.CreateSessionRequest{CaseID: "coffee", Mode: "interviewer_led"}, &created)
	require.Equal(t, http.StatusCreated, status)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/interview/" + created.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	opening := readFrame(t, conn)
	assert.Equal(t, "interviewer", opening.Role)
	assert.Contains(t, opening.Message, "Profits fell.")
	assert.Equal(t, "framework", opening.Phase)

	require.NoError(t, conn.WriteJSON(clientFrame{Message: "I'd split profit into revenue and costs"}))
	echo := readFrame(t, conn)
	assert.Equal(t, "user", echo.Role)
	reply := readFrame(t, conn)
	assert.Equal(t, "interviewer", reply.Role)
	assert.Contains(t, reply.Message, "revenue and costs")

	require.NoError(t, conn.WriteJSON(clientFrame{Message: "   "}))
	rejected := readFrame(t, conn)
	assert.Equal(t, "system", rejected.Role)
	assert.Contains(t, rejected.Message, "Message cannot be empty")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	bad := readFrame(t, conn)
	assert.Equal(t, msgBadFrame, bad.Message)

	conn.Close()

	// reconnecting resumes silently
	again, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer again.Close()

	resumed := readFrame(t, again)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, "system", resumed.Role)
	assert.Empty(t, resumed.Message)

	log, err := env.repo.ListMessages(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, log, 3)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.server.URL, "http")+"/ws/interview/nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvaluateCompletedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id := "6a1f7b2c-1d3e-4f50-8a9b-0c1d2e3f4a5b"
	require.NoError(t, env.repo.CreateSession(ctx, &models.InterviewSession{
		ID: id, Token: "done-token", CaseID: "coffee", Mode: models.ModeInterviewerLed,
		Status: models.SessionCompleted, CurrentPhase: "completed", CreatedAt: now, UpdatedAt: now,
	}))

	var result models.EvaluationResponse
	status, _ := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/evaluate", adminKey, nil, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 81, result.Evaluation.OverallScore)
	require.NotNil(t, result.Feedback)

	var stored models.EvaluationResponse
	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/evaluation", readerKey, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/evaluation", adminKey, nil, &stored)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Keep practicing math drills", stored.Feedback.Summary)
}

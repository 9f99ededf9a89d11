package server

import (
	"bytes"
	"context"
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

	"github.com/gin-gonic/gin"

	"nanoj/internal/auth"
	authctl "nanoj/internal/auth/controller"
	"nanoj/internal/common/storage"
	judgectl "nanoj/internal/judge/controller"
	"nanoj/internal/judge/model"
	"nanoj/internal/judge/repository"
	"nanoj/internal/judge/sandbox"
	"nanoj/internal/judge/service"
	"nanoj/internal/judge/spj"
)

// scriptedExecutor answers each stdin with a canned run.
type scriptedExecutor struct {
	runs map[string]sandbox.Run
}

func (e *scriptedExecutor) Execute(ctx context.Context, req sandbox.Request) (sandbox.Run, error) {
	if run, ok := e.runs[req.Stdin]; ok {
		return run, nil
	}
	return sandbox.Run{Status: model.VerdictAC}, nil
}

func (e *scriptedExecutor) Available() bool { return true }
func (e *scriptedExecutor) Name() string    { return "docker" }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	admin  string
	alice  string
	bob    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	dir := t.TempDir()

	store, err := repository.NewJSONStore(dir)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	logs, err := repository.NewFileLogStore(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("NewFileLogStore: %v", err)
	}
	repo := store.Repository(logs)

	problem := &model.Problem{
		ID:               "p1",
		TimeLimitSeconds: 1,
		MemoryLimitMB:    64,
		TestCases: []model.TestCase{
			{Input: "1 2\n", ExpectedOutput: "3\n"},
			{Input: "2 3\n", ExpectedOutput: "5\n"},
		},
	}
	data, err := json.Marshal(problem)
	if err != nil {
		t.Fatalf("marshal problem: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "problems", "p1.json"), data, 0o644); err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	exec := &scriptedExecutor{runs: map[string]sandbox.Run{
		"1 2\n": {Status: model.VerdictAC, Stdout: "3\n"},
		"2 3\n": {Status: model.VerdictAC, Stdout: "5\n"},
	}}
	svc, err := service.NewJudgeService(repo, []sandbox.Executor{exec}, nil, service.Config{})
	if err != nil {
		t.Fatalf("NewJudgeService: %v", err)
	}
	pool := service.NewPool(svc, 2, true)

	users, err := auth.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens, err := auth.NewTokenIssuer([]byte("test-secret"), "nanoj-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	authSvc, err := auth.NewService(users, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := users.EnsureAdmin(ctx, "root", "adminpass1"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if _, err := authSvc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	if _, err := authSvc.Register(ctx, "bob", "password1"); err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	blob, err := storage.NewLocalStorage(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	checkerStore := spj.NewStore(blob, "checkers")
	runner := spj.NewRunner(checkerStore, spj.DefaultRunnerConfig())

	router := NewRouter(Deps{
		Auth:        authSvc,
		AuthCtl:     authctl.NewAuthController(authSvc),
		Submissions: judgectl.NewSubmissionController(repo, pool),
		SPJ:         judgectl.NewSPJController(checkerStore, runner, repo.Visibility),
	})

	ts := &testServer{router: router}
	ts.admin = ts.login(t, "root", "adminpass1")
	ts.alice = ts.login(t, "alice", "password1")
	ts.bob = ts.login(t, "bob", "password1")
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", w.Body.String(), err)
	}
	return w, env
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	return data.Token
}

func (ts *testServer) submit(t *testing.T, token string) *model.Submission {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/submissions", token, gin.H{
		"problem_id": "p1",
		"language":   "python",
		"code":       "print(sum(map(int, input().split())))",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}
	var sub model.Submission
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	return &sub
}

func TestSubmitFlowSynchronous(t *testing.T) {
	ts := newTestServer(t)

	sub := ts.submit(t, ts.alice)
	if sub.Status != model.StatusSuccess {
		t.Fatalf("status = %s, want success (synchronous judging)", sub.Status)
	}
	if sub.Score != 20 || sub.Counts != 20 {
		t.Errorf("score/counts = %d/%d, want 20/20", sub.Score, sub.Counts)
	}
	if sub.UserID != "alice" {
		t.Errorf("user = %s, want alice (taken from the session)", sub.UserID)
	}

	w, env := ts.do(t, http.MethodGet, "/api/submissions/"+sub.SubmissionID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	var got model.Submission
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Score != 20 {
		t.Errorf("Score = %d, want 20", got.Score)
	}

	w, env = ts.do(t, http.MethodGet, "/api/submissions/"+sub.SubmissionID+"/log", ts.alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("log: status %d body %s", w.Code, w.Body.String())
	}
	var log model.SubmissionLog
	if err := json.Unmarshal(env.Data, &log); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if len(log.Cases) != 2 {
		t.Errorf("cases = %d, want 2", len(log.Cases))
	}
}

func TestSubmitRequiresSession(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodPost, "/api/submissions", "", gin.H{
		"problem_id": "p1", "language": "python", "code": "print(1)",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSubmitValidatesReferences(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/submissions", ts.alice, gin.H{
		"problem_id": "ghost", "language": "python", "code": "print(1)",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown problem: status = %d, want 404", w.Code)
	}

	w, _ = ts.do(t, http.MethodPost, "/api/submissions", ts.alice, gin.H{
		"problem_id": "p1", "language": "cobol", "code": "print(1)",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown language: status = %d, want 400", w.Code)
	}
}

func TestListRequiresFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.submit(t, ts.alice)

	w, _ := ts.do(t, http.MethodGet, "/api/submissions", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unfiltered list: status = %d, want 400", w.Code)
	}

	w, env := ts.do(t, http.MethodGet, "/api/submissions?user_id=alice", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filtered list: status %d body %s", w.Code, w.Body.String())
	}
	var page struct {
		Items []model.Submission `json:"items"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("total/items = %d/%d, want 1/1", page.Total, len(page.Items))
	}
}

func TestLogVisibilityPermissions(t *testing.T) {
	ts := newTestServer(t)
	sub := ts.submit(t, ts.alice)
	logPath := "/api/submissions/" + sub.SubmissionID + "/log"

	w, _ := ts.do(t, http.MethodGet, logPath, ts.bob, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger log read: status = %d, want 403", w.Code)
	}
	w, _ = ts.do(t, http.MethodGet, logPath, ts.admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin log read: status = %d, want 200", w.Code)
	}

	w, _ = ts.do(t, http.MethodPut, "/api/problems/p1/log_visibility", ts.admin, gin.H{"public": true})
	if w.Code != http.StatusOK {
		t.Fatalf("set visibility: status %d body %s", w.Code, w.Body.String())
	}
	w, _ = ts.do(t, http.MethodGet, logPath, ts.bob, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public log read: status = %d, want 200", w.Code)
	}
}

func TestVisibilityToggleAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodPut, "/api/problems/p1/log_visibility", ts.alice, gin.H{"public": true})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRejudgeAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	sub := ts.submit(t, ts.alice)
	path := "/api/submissions/" + sub.SubmissionID + "/rejudge"

	w, _ := ts.do(t, http.MethodPut, path, ts.alice, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user rejudge: status = %d, want 403", w.Code)
	}

	w, env := ts.do(t, http.MethodPut, path, ts.admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin rejudge: status %d body %s", w.Code, w.Body.String())
	}
	var rejudged model.Submission
	if err := json.Unmarshal(env.Data, &rejudged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rejudged.Status != model.StatusSuccess || rejudged.Score != 20 {
		t.Errorf("status/score = %s/%d, want success/20", rejudged.Status, rejudged.Score)
	}
}

func TestCheckerTextUpload(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/problems/p1/spj/text", ts.admin, gin.H{
		"language": "python",
		"content":  "import os\nos.system('rm -rf /')",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("denied upload: status = %d, want 400", w.Code)
	}

	script := "import json, sys\nprint(json.dumps({\"status\": \"AC\"}))"
	w, _ = ts.do(t, http.MethodPost, "/api/problems/p1/spj/text", ts.admin, gin.H{
		"language": "python",
		"content":  script,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("clean upload: status %d body %s", w.Code, w.Body.String())
	}

	w, env := ts.do(t, http.MethodGet, "/api/problems/p1/spj", ts.admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get checker: status %d", w.Code)
	}
	var got struct {
		Language string `json:"language"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode checker: %v", err)
	}
	if got.Language != "python" || got.Content != script {
		t.Errorf("checker = %+v", got)
	}

	w, _ = ts.do(t, http.MethodDelete, "/api/problems/p1/spj", ts.admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete checker: status %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodGet, "/api/problems/p1/spj", ts.admin, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted checker read: status = %d, want 404", w.Code)
	}
}

func TestCheckerMultipartUpload(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "checker.py")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(part, "import json\nprint(json.dumps({\"status\": \"AC\"}))")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/problems/p1/spj", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.admin)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("multipart upload: status %d body %s", w.Code, w.Body.String())
	}

	w2, _ := ts.do(t, http.MethodGet, "/api/problems/p1/spj", ts.admin, nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("get checker: status %d", w2.Code)
	}

	// Wrong extension is refused before any content check.
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	part, err = mw.CreateFormFile("file", "checker.sh")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(part, "echo hi")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/problems/p1/spj", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.admin)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad extension: status = %d, want 400", w.Code)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/api/languages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var langs []model.Language
	if err := json.Unmarshal(env.Data, &langs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make([]string, 0, len(langs))
	for _, l := range langs {
		names = append(names, l.Name)
	}
	if strings.Join(names, ",") != "cpp,python" {
		t.Errorf("languages = %v, want [cpp python]", names)
	}
}

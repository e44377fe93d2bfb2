package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/codegen-ide/internal/chat"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/generation"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi/handlers"
	"github.com/suPer8Hu/codegen-ide/internal/models"
	"github.com/suPer8Hu/codegen-ide/internal/project"
	"github.com/suPer8Hu/codegen-ide/internal/prompt"
	"github.com/suPer8Hu/codegen-ide/internal/store/filestore"
	"github.com/suPer8Hu/codegen-ide/internal/templates"
)

func init() { gin.SetMode(gin.TestMode) }

// stubGenerator answers after delay, giving up like a real provider call
// if ctx ends first.
type stubGenerator struct {
	res   generation.Result
	err   error
	delay time.Duration
}

func (g *stubGenerator) Generate(ctx context.Context, pc prompt.Context) (generation.Result, error) {
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return generation.Result{}, fmt.Errorf("%w: %v", generation.ErrFailed, ctx.Err())
		case <-time.After(g.delay):
		}
	}
	return g.res, g.err
}

type testEnv struct {
	router *gin.Engine
	gen    *stubGenerator
	broker *events.Broker
	store  *filestore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs, err := filestore.Open(t.TempDir())
	require.NoError(t, err)

	broker := events.NewBroker(nil)
	t.Cleanup(broker.Close)
	notify := events.NewNotifier(broker, nil)

	gen := &stubGenerator{}
	projects := project.NewService(fs, notify, nil)
	h := handlers.NewHandler(
		projects,
		templates.NewService(fs, projects, nil),
		chat.NewService(fs, gen, notify, nil),
		broker,
		nil,
	)
	h.Heartbeat = 50 * time.Millisecond

	return &testEnv{
		router: NewRouter(h, Options{CORSOrigins: []string{"http://localhost:5173"}}),
		gen:    gen,
		broker: broker,
		store:  fs,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) createProject(t *testing.T, name string) models.Project {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/projects", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Project](t, w)
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestProjects_CreateGetListDelete(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "demo")
	assert.NotZero(t, p.ID)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[project.Snapshot](t, w)
	assert.Equal(t, "demo", snap.Name)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "index.html", snap.Files[0].Path)
	assert.NotNil(t, snap.Messages)
	assert.NotNil(t, snap.Uploads)

	w = env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Project](t, w), 1)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", p.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", p.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", p.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":40400,"message":"not found"}`, w.Body.String())
}

func TestProjects_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/projects", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body", decode[map[string]any](t, w)["field"])

	w = env.do(t, http.MethodPost, "/api/projects", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name", decode[map[string]any](t, w)["field"])

	w = env.do(t, http.MethodGet, "/api/projects/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decode[map[string]any](t, w)["field"])

	list, err := env.store.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFiles_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "files")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", p.ID),
		map[string]string{"path": "src/App.tsx", "content": "v1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f := decode[models.File](t, w)
	assert.Equal(t, "typescript", f.Language)
	assert.Equal(t, p.ID, f.ProjectID)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/files/%d", f.ID), map[string]string{"content": "v2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v2", decode[models.File](t, w).Content)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/files/%d", f.ID), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content", decode[map[string]any](t, w)["field"])

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/versions", f.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	versions := decode[[]models.FileVersion](t, w)
	require.Len(t, versions, 1)
	assert.Equal(t, "v1", versions[0].Content)
	assert.Equal(t, p.ID, versions[0].ProjectID)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/files/suggest/APP", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	suggested := decode[[]models.File](t, w)
	require.Len(t, suggested, 1)
	assert.Equal(t, "src/App.tsx", suggested[0].Path)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/files", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.File](t, w), 2)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", f.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", f.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/files/%d", f.ID), map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadAndPreview(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "My Site")
	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", p.ID),
		map[string]string{"path": "style.css", "content": "h1{color:red}"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/download", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="My-Site.json"`, w.Header().Get("Content-Disposition"))
	exp := decode[project.Export](t, w)
	assert.Equal(t, "My Site", exp.ProjectName)
	assert.Len(t, exp.Files, 2)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/preview", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "h1{color:red}")
	assert.Contains(t, w.Body.String(), "<h1>Hello World</h1>")
}

func TestUploads(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "up")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/uploads", p.ID),
		map[string]any{"fileName": "logo.png", "fileType": "image/png", "fileSize": 2048})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u := decode[models.Upload](t, w)
	assert.Equal(t, int64(2048), u.FileSize)
	assert.NotEmpty(t, u.FilePath)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/uploads", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Upload](t, w), 1)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/uploads/%d", u.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logo.png", decode[models.Upload](t, w).FileName)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/uploads/%d", u.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/uploads/%d", u.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "tpl")

	w := env.do(t, http.MethodPost, "/api/templates", map[string]any{
		"name": "Flask",
		"type": "python",
		"files": []map[string]string{
			{"path": "app.py", "content": "print(1)"},
			{"path": "requirements.txt", "content": "Flask", "language": "plaintext"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tpl := decode[models.Template](t, w)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/templates/%d", tpl.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.Template](t, w).Files, 2)

	w = env.do(t, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Template](t, w), 1)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/use-template/%d", p.ID, tpl.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[[]models.File](t, w)
	require.Len(t, created, 2)
	assert.Equal(t, "python", created[0].Language)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/use-template/%d", p.ID+99, tpl.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/templates/%d", tpl.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/templates/%d", tpl.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "chat")
	env.gen.res = generation.Result{
		Message: "Updated the page.",
		Files:   []generation.FileEdit{{Path: "index.html", Content: "<p>new</p>"}, {Path: "app.js", Content: "1"}},
	}

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/chat", p.ID), map[string]string{"prompt": "change it"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[chat.Reply](t, w)
	assert.Equal(t, models.RoleAssistant, reply.Message.Role)
	assert.Equal(t, "Updated the page.", reply.Message.Content)
	require.Len(t, reply.GeneratedFiles, 2)
	assert.Equal(t, "<p>new</p>", reply.GeneratedFiles[0].Content)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", p.ID), nil)
	snap := decode[project.Snapshot](t, w)
	assert.Len(t, snap.Messages, 2)
	assert.Len(t, snap.Files, 2)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/messages", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Message](t, w), 2)
}

func TestChat_GenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "fail")
	env.gen.err = fmt.Errorf("%w: replicate returned 401", generation.ErrFailed)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/chat", p.ID), map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]any](t, w)
	assert.Contains(t, body["message"], "replicate returned 401")

	msgs, err := env.store.ListMessages(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestChat_ClientGivesUpEarly(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	p := env.createProject(t, "slow")
	env.gen.delay = 300 * time.Millisecond
	env.gen.res = generation.Result{
		Message: "Done.",
		Files:   []generation.FileEdit{{Path: "index.html", Content: "<p>late</p>"}, {Path: "app.js", Content: "1"}},
	}

	client := &http.Client{Timeout: 50 * time.Millisecond}
	resp, err := client.Post(fmt.Sprintf("%s/api/projects/%d/chat", srv.URL, p.ID),
		"application/json", strings.NewReader(`{"prompt":"slow change"}`))
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		msgs, err := env.store.ListMessages(ctx, p.ID)
		if err != nil || len(msgs) != 2 {
			return false
		}
		files, err := env.store.ListFiles(ctx, p.ID)
		return err == nil && len(files) == 2
	}, 3*time.Second, 20*time.Millisecond)

	msgs, err := env.store.ListMessages(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Done.", msgs[1].Content)

	files, err := env.store.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "index.html", files[1].Path)
	assert.Equal(t, "<p>late</p>", files[1].Content)
}

func TestChat_UnknownProject(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/projects/7/chat", map[string]string{"prompt": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":40400,"message":"route not found"}`, w.Body.String())

	w = env.do(t, http.MethodPatch, "/api/projects", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProjectEvents_Stream(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "live")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/projects/%d/events", srv.URL, p.ID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				return strings.TrimPrefix(l, "event: ")
			}
		}
		return ""
	}
	require.Equal(t, "ready", next())
	require.Eventually(t, func() bool { return env.broker.Subscribers(p.ID) == 1 }, time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", p.ID), map[string]string{"path": "a.js"})
	require.Equal(t, http.StatusCreated, w.Code)

	seen := map[string]bool{}
	for !seen[string(events.FileCreated)] || !seen["ping"] {
		ev := next()
		require.NotEmpty(t, ev, "stream ended early")
		seen[ev] = true
	}

	cancel()
	require.Eventually(t, func() bool { return env.broker.Subscribers(p.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProjectEvents_UnknownProject(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/projects/99/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

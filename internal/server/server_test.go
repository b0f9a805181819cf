package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/scheduler"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
	"github.com/conneroisu/sitepipe/internal/websocket"
)

func newTestServer(t *testing.T, root string) (*Server, *httptest.Server) {
	t.Helper()
	notifier := websocket.NewNotifier(websocket.Config{OutputRoot: root})
	s := New(Config{Host: "127.0.0.1", Root: root}, notifier, nil, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = notifier.Shutdown(ctx)
	})
	return s, ts
}

func writeSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets", "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"),
		[]byte("<html><body><h1>Home</h1></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "css", "style.min.css"),
		[]byte("body{margin:0}"), 0o644))
	return root
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestInjectBeforeBodyEnd(t *testing.T) {
	snippet := []byte("<script></script>")

	testCases := []struct {
		name string
		page string
		want string
	}{
		{
			name: "single body",
			page: "<html><body><p>x</p></body></html>",
			want: "<html><body><p>x</p><script></script></body></html>",
		},
		{
			name: "uppercase tag",
			page: "<HTML><BODY>x</BODY></HTML>",
			want: "<HTML><BODY>x<script></script></BODY></HTML>",
		},
		{
			name: "body text inside script is ignored",
			page: `<body><script>var s = "</body>";</script></body>`,
			want: `<body><script>var s = "</body>";</script><script></script></body>`,
		},
		{
			name: "no body",
			page: "<p>fragment</p>",
			want: "<p>fragment</p><script></script>",
		},
		{
			name: "empty page",
			page: "",
			want: "<script></script>",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := InjectBeforeBodyEnd([]byte(tc.page), snippet)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestServeInjectsReloadClient(t *testing.T) {
	root := writeSite(t)
	_, ts := newTestServer(t, root)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<script src="`+ClientPath+`"></script></body>`)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")

	resp, body = get(t, ts.URL+"/assets/css/style.min.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{margin:0}", body)

	resp, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeRejectsTraversal(t *testing.T) {
	root := writeSite(t)
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("nope"), 0o644))
	_, ts := newTestServer(t, root)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	req.URL.Path = "/../secret.txt"
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "nope")
}

func TestClientScriptAndHealth(t *testing.T) {
	_, ts := newTestServer(t, writeSite(t))

	resp, body := get(t, ts.URL+ClientPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, WebSocketPath)

	resp, body = get(t, ts.URL+HealthPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
}

func runGraph(t *testing.T, fail bool) *scheduler.Run {
	t.Helper()
	reg := taskgraph.NewRegistry()
	require.NoError(t, reg.Register(taskgraph.Step{
		ID: "css",
		Transform: taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
			if fail {
				return nil, stderrors.New("unbalanced brace")
			}
			return []string{"style.min.css"}, nil
		}),
	}))
	run, err := scheduler.New(reg).Run(context.Background(), nil)
	require.NoError(t, err)
	return run
}

func TestRecordRunDrivesOverlayAndStatus(t *testing.T) {
	root := writeSite(t)
	s, ts := newTestServer(t, root)

	s.RecordRun(runGraph(t, true))

	_, body := get(t, ts.URL+"/index.html")
	assert.Contains(t, body, "sitepipe-error-overlay")
	assert.Contains(t, body, "unbalanced brace")

	_, body = get(t, ts.URL+StatusPath)
	var status Status
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "failed", status.LastRun.Status)
	require.Len(t, status.Errors, 1)
	assert.Equal(t, "css", status.Errors[0].StepID)

	s.RecordRun(runGraph(t, false))

	_, body = get(t, ts.URL+"/index.html")
	assert.NotContains(t, body, "sitepipe-error-overlay")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "</html>"))
}

func TestStatusRejectsPost(t *testing.T) {
	_, ts := newTestServer(t, writeSite(t))

	resp, err := http.Post(ts.URL+StatusPath, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	root := writeSite(t)
	notifier := websocket.NewNotifier(websocket.Config{})
	s := New(Config{Host: "127.0.0.1", Port: 0, Root: root}, notifier, nil, nil)
	require.NoError(t, s.Listen())
	assert.NotEmpty(t, s.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.URL() + HealthPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, notifier.IsShutdown())
}

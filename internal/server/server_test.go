package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/internal/server/notifier"
	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *catalog.Static, string) {
	t.Helper()
	path := testutil.WriteFile(t, t.TempDir(), "catalog.yaml", testutil.CatalogYAML)
	static, err := catalog.LoadStatic(path)
	require.NoError(t, err)

	opts := completion.DefaultOptions()
	opts.DefaultSchema = "sales"
	eng := completion.New(static, opts, testutil.NewTestLogger(t))

	return New(Config{
		Engine:    eng,
		Static:    static,
		WatchPath: path,
		Logger:    testutil.NewTestLogger(t),
	}), static, path
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestParse(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := post(t, s.Handler(), "/v1/parse", `{"sql":"SELECT * FROM (SELECT id FROM orders) d"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[parseResponse](t, rec)
	require.Len(t, got.Scopes, 2)
	assert.Equal(t, "d", got.Scopes[1].Alias)
	assert.Equal(t, 0, got.Scopes[1].Parent)
	assert.Equal(t, []string{"id"}, got.Scopes[1].ExposedColumns)
}

func TestComplete(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := post(t, s.Handler(), "/v1/complete", `{"sql":"SELECT o. FROM orders o","offset":9}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Context   string `json:"context"`
		Qualifier string `json:"qualifier"`
		Items     []struct {
			Label string `json:"label"`
			Kind  string `json:"kind"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "column_access", got.Context)
	assert.Equal(t, "o", got.Qualifier)
	var cols []string
	for _, it := range got.Items {
		if it.Kind == "column" {
			cols = append(cols, it.Label)
		}
	}
	assert.Equal(t, []string{"id", "customer_id", "amount"}, cols)
}

func TestVisible(t *testing.T) {
	s, _, _ := newTestServer(t)
	sql := "SELECT * FROM hr.staff s WHERE EXISTS (SELECT 1 FROM orders o WHERE o.id = s.id)"
	body, err := json.Marshal(map[string]any{"sql": sql, "offset": strings.Index(sql, "o.id")})
	require.NoError(t, err)

	rec := post(t, s.Handler(), "/v1/visible", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[completion.Inspection](t, rec)
	assert.Equal(t, 1, got.Scope.Index)
	assert.Equal(t, []int{0, 1}, got.Path)
	require.Len(t, got.Visibility.Aliases, 1)
	assert.Equal(t, "o", got.Visibility.Aliases[0].Name)
	require.Len(t, got.Visibility.ParentAliases, 1)
	assert.Equal(t, "s", got.Visibility.ParentAliases[0].Name)
	require.Len(t, got.ParentTableColumns, 1)
	assert.Equal(t, []string{"id", "name", "manager_id"}, got.ParentTableColumns[0].Columns)
}

func TestHover(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := post(t, s.Handler(), "/v1/hover", `{"sql":"SELECT o.id FROM orders o","offset":7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[hoverResponse](t, rec)
	assert.True(t, got.Found)
	assert.Contains(t, got.Contents, "table `orders`")
}

func TestBadRequests(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"malformed json", "/v1/parse", `{"sql":`, "invalid request body"},
		{"unknown field", "/v1/complete", `{"sql":"SELECT 1","caret":3}`, "invalid request body"},
		{"negative offset", "/v1/complete", `{"sql":"SELECT 1","offset":-1}`, "out of range"},
		{"offset past end", "/v1/visible", `{"sql":"SELECT 1","offset":9}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s.Handler(), tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			got := decodeBody[errorResponse](t, rec)
			assert.Contains(t, got.Error, tt.want)
		})
	}
}

func TestTables(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		query string
		want  []catalog.TableName
	}{
		{"", []catalog.TableName{
			{Schema: "hr", Name: "staff"},
			{Schema: "sales", Name: "customers"},
			{Schema: "sales", Name: "orders"},
		}},
		{"?schema=hr", []catalog.TableName{{Schema: "hr", Name: "staff"}}},
		{"?schema=missing", []catalog.TableName{}},
	}

	for _, tt := range tests {
		t.Run("tables"+tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tables"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			got := decodeBody[tablesResponse](t, rec)
			assert.ElementsMatch(t, tt.want, got.Tables)
		})
	}
}

func TestTablesWithoutCatalog(t *testing.T) {
	s := New(Config{Engine: completion.New(nil, completion.DefaultOptions(), nil)})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tables":[]}`, rec.Body.String())
}

func TestReloadCatalog(t *testing.T) {
	s, static, path := newTestServer(t)
	ch := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte("schemas:\n  sales:\n    orders: [order_id]\n"), 0o600))
	s.reloadCatalog()

	ev := <-ch
	assert.Equal(t, notifier.CatalogReloaded, ev.Kind)
	cols, err := static.Columns(context.Background(), "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id"}, cols)

	// A broken file keeps the previous contents.
	require.NoError(t, os.WriteFile(path, []byte("schemas: [\n"), 0o600))
	s.reloadCatalog()

	ev = <-ch
	assert.Equal(t, notifier.CatalogFailed, ev.Kind)
	assert.NotEmpty(t, ev.Message)
	cols, err = static.Columns(context.Background(), "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id"}, cols)
}

func TestEventsStream(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.Notifier().Len() == 1 }, time.Second, 5*time.Millisecond)
	s.Notifier().Broadcast(notifier.Event{Kind: notifier.CatalogReloaded})

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: catalog.reloaded\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: {"), line)
}

func TestServeListenerShutdown(t *testing.T) {
	s, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test helper
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeBadAddr(t *testing.T) {
	s := New(Config{Engine: completion.New(nil, completion.DefaultOptions(), nil), Addr: "bad:addr:x"})
	assert.Error(t, s.Serve(context.Background()))
}

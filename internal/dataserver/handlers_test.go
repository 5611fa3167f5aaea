package dataserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgevtt/forgesync/internal/datastore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := datastore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return New(DefaultConfig(), store)
}

func doRequest(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPut, "/v1/files/maps/a.png", []byte("image bytes"))
	require.Equal(t, http.StatusOK, rec.Code)

	var uploaded etagResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	assert.NotEmpty(t, uploaded.Etag)

	rec = doRequest(s, http.MethodGet, "/v1/files/maps/a.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = doRequest(s, http.MethodGet, "/v1/etag/maps/a.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queried etagResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queried))
	assert.Equal(t, uploaded.Etag, queried.Etag)
}

func TestBrowseAndCreateDir(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/dirs", []byte(`{"path":"maps"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// creating it again is a conflict
	rec = doRequest(s, http.MethodPost, "/v1/dirs", []byte(`{"path":"maps"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// a name the filesystem refuses
	rec = doRequest(s, http.MethodPost, "/v1/dirs", []byte(`{"path":"bad*name"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/browse?dir=", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing datastore.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "maps", listing.Entries[0].Name)
	assert.True(t, listing.Entries[0].IsDir)
}

func TestNotFoundMapping(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/v1/files/ghost.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/etag/ghost.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/browse?dir=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/v1/dirs", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerStartStop(t *testing.T) {
	store, err := datastore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Port = 0 // pick a free port
	s := New(cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// wait until the listener is bound
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(s.Addr(), "127.0.0.1:"))

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

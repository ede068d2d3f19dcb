package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/internal/api"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/auth"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/store/storetest"
	"github.com/mwantia/s3offload/pkg/discovery"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/nonce"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/s3client/s3test"
	"github.com/mwantia/s3offload/pkg/settings"
	"github.com/mwantia/s3offload/pkg/syncer"
)

const secret = "test-secret-0123456789"

type harness struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.Authenticator
	factory *s3test.Factory
	root    string
	token   string
}

func newHarness(t *testing.T) *harness {
	st := storetest.New(t)
	logger := log.NewDiscardLogger()
	root := t.TempDir()

	authenticator, err := auth.New(secret)
	require.NoError(t, err)
	token, _, err := authenticator.Issue("alice", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	registry := bucket.NewRegistry(st, logger)
	factory := s3test.NewFactory("media1")
	recorder := audit.NewRecorder(st)

	server := api.New(api.Services{
		Store:     st,
		Settings:  settings.NewStore(st),
		Registry:  registry,
		Factory:   factory,
		Resolver:  resolver.New(registry, factory, logger),
		Syncer:    syncer.NewEngine(st, registry, factory, recorder, syncer.FSLocator{Root: root}, logger),
		Discovery: discovery.NewEngine(st, registry, factory, recorder, logger),
		Audit:     recorder,
		Auth:      authenticator,
		Nonces:    nonce.NewManager(authenticator.Secret(), time.Hour),
	}, api.Options{
		RequestTimeout: time.Minute,
		UploadsBaseURL: "http://localhost/uploads",
	}, logger)

	return &harness{
		t:       t,
		handler: server.Handler(),
		auth:    authenticator,
		factory: factory,
		root:    root,
		token:   token,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (h *harness) raw(method, path string, body any, headers map[string]string) (int, envelope) {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (h *harness) nonce() string {
	code, env := h.raw(http.MethodGet, "/api/nonce", nil, h.authHeader())
	require.Equal(h.t, http.StatusOK, code)

	var out struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &out))
	return out.Nonce
}

func (h *harness) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + h.token}
}

// do sends an authenticated request, attaching a fresh nonce when the
// method changes state.
func (h *harness) do(method, path string, body any) (int, envelope) {
	headers := h.authHeader()
	if method != http.MethodGet {
		headers[api.NonceHeader] = h.nonce()
	}
	return h.raw(method, path, body, headers)
}

func decodeData[T any](t *testing.T, env envelope) T {
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	code, env := h.raw(http.MethodGet, "/api/buckets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = h.raw(http.MethodGet, "/api/buckets", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	viewer, _, err := h.auth.Issue("bob", "viewer", time.Hour)
	require.NoError(t, err)
	code, _ = h.raw(http.MethodGet, "/api/buckets", nil, map[string]string{"Authorization": "Bearer " + viewer})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.raw(http.MethodGet, "/api/buckets", nil, h.authHeader())
	assert.Equal(t, http.StatusOK, code)
}

func TestNonceIsRequiredAndSingleUse(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"name": "media1", "access_key": "minio", "secret_key": "minio123"}

	code, _ := h.raw(http.MethodPost, "/api/buckets", body, h.authHeader())
	assert.Equal(t, http.StatusForbidden, code)

	headers := h.authHeader()
	headers[api.NonceHeader] = h.nonce()
	code, _ = h.raw(http.MethodPost, "/api/buckets", body, headers)
	assert.Equal(t, http.StatusCreated, code)

	body["name"] = "media2"
	code, env := h.raw(http.MethodPost, "/api/buckets", body, headers)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Invalid nonce", env.Error)
}

func TestBucketLifecycle(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/buckets", map[string]any{
		"name":        "media1",
		"access_key":  "minio",
		"secret_key":  "minio123",
		"endpoint":    "http://localhost:9000",
		"path_prefix": "/uploads",
		"is_default":  true,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decodeData[bucket.Config](t, env)
	assert.Equal(t, settings.SecretMask, created.SecretKey)
	assert.Equal(t, "uploads", created.PathPrefix)

	code, env = h.do(http.MethodGet, "/api/buckets", nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[[]bucket.Config](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, settings.SecretMask, list[0].SecretKey)

	code, _ = h.do(http.MethodPost, "/api/buckets", map[string]any{"name": "x", "bucket_name": "y"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodGet, "/api/buckets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodGet, "/api/buckets/0", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodGet, "/api/buckets/99", nil)
	assert.Equal(t, http.StatusNotFound, code)

	path := fmt.Sprintf("/api/buckets/%d", created.ID)
	code, env = h.do(http.MethodPut, path, map[string]any{"label": "Media", "secret_key": settings.SecretMask})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "Media", decodeData[bucket.Config](t, env).Label)

	code, _ = h.do(http.MethodPost, path+"/default", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadSyncAndServe(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/buckets", map[string]any{
		"name":        "media1",
		"access_key":  "minio",
		"secret_key":  "minio123",
		"endpoint":    "http://localhost:9000",
		"path_prefix": "uploads",
		"is_default":  true,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	b := decodeData[bucket.Config](t, env)

	abs := filepath.Join(h.root, "2024", "07", "photo.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("jpeg"), 0o644))

	code, env = h.do(http.MethodPost, "/api/files", map[string]any{"path": "2024/07/photo.jpg"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	registered := decodeData[struct {
		File struct {
			ID  uint   `json:"id"`
			URL string `json:"url"`
		} `json:"file"`
	}](t, env)
	assert.Equal(t, "http://localhost/uploads/2024/07/photo.jpg", registered.File.URL)
	fileID := registered.File.ID

	code, env = h.do(http.MethodPost, "/api/sync", map[string]any{"force": false})
	require.Equal(t, http.StatusOK, code, env.Error)
	page := decodeData[syncer.PageResult](t, env)
	assert.Equal(t, 1, page.Success)
	assert.True(t, page.Done)

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/files/%d/url", fileID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "http://localhost:9000/media1/uploads/2024/07/photo.jpg",
		decodeData[map[string]string](t, env)["url"])

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/files/%d/membership?bucket_id=%d", fileID, b.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[map[string]bool](t, env)["match"])

	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/files/%d/membership?bucket_id=x", fileID), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/files?bucket=%d", b.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]json.RawMessage](t, env), 1)

	code, env = h.do(http.MethodGet, "/api/files?bucket=local", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]json.RawMessage](t, env))

	code, env = h.do(http.MethodGet, "/api/logs?action=manual_sync", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]json.RawMessage](t, env), 1)

	code, env = h.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[map[string]any](t, env)
	assert.EqualValues(t, 1, stats["files_offloaded"])
	assert.Equal(t, "media1", stats["default_bucket"])
}

func TestMultiBucketFeaturesCanBeDisabled(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/buckets", map[string]any{"name": "media1", "access_key": "a", "secret_key": "b"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "a.png"), []byte("png"), 0o644))
	code, env = h.do(http.MethodPost, "/api/files", map[string]any{"path": "a.png"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = h.do(http.MethodPatch, "/api/settings", map[string]any{"multi_bucket_enabled": false})
	require.Equal(t, http.StatusOK, code, env.Error)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/files?bucket=1", nil},
		{http.MethodGet, "/api/files?bucket=local", nil},
		{http.MethodGet, "/api/files/1/membership?bucket_id=1", nil},
		{http.MethodPut, "/api/files/1/bucket", map[string]any{"bucket_id": 1}},
	} {
		code, env = h.do(tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusConflict, code, tc.path)
		assert.Equal(t, "Multi-bucket support is disabled", env.Error, tc.path)
	}

	code, env = h.do(http.MethodGet, "/api/files", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]json.RawMessage](t, env), 1)

	code, env = h.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[map[string]any](t, env)
	assert.Equal(t, false, stats["multi_bucket"])
	assert.Equal(t, true, stats["auto_discover"])
}

func TestSingleSyncWithoutBucket(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "a.png"), []byte("png"), 0o644))

	code, env := h.do(http.MethodPost, "/api/files", map[string]any{"path": "a.png"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = h.do(http.MethodPost, "/api/files/1/sync", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, syncer.MsgNoBucket, env.Error)

	code, _ = h.do(http.MethodPost, "/api/files/42/sync", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSettingsEndpoints(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPatch, "/api/settings", map[string]any{"secret_key": "topsecret", "bucket": "b"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, settings.SecretMask, decodeData[settings.Settings](t, env).SecretKey)

	code, _ = h.do(http.MethodPut, "/api/settings", map[string]any{"unknown_field": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(http.MethodPatch, "/api/settings", map[string]any{"sync_mode": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, code)
	current := decodeData[settings.Settings](t, env)
	assert.Equal(t, "b", current.Bucket)
	assert.Equal(t, settings.SecretMask, current.SecretKey)
}

func TestConnectionEndpoints(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/api/connection/test", map[string]any{"access_key": "a"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required connection parameters", env.Error)

	params := map[string]any{
		"access_key": "a",
		"secret_key": "b",
		"endpoint":   "http://localhost:9000",
		"bucket":     "media1",
	}
	code, env = h.do(http.MethodPost, "/api/connection/buckets", params)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, []string{"media1"}, decodeData[map[string][]string](t, env)["buckets"])

	code, _ = h.do(http.MethodPost, "/api/connection/test", params)
	assert.Equal(t, http.StatusOK, code)

	params["bucket"] = "missing"
	code, env = h.do(http.MethodPost, "/api/connection/test", params)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Bucket does not exist", env.Error)
}

func TestDiscoverEndpoint(t *testing.T) {
	h := newHarness(t)
	h.factory.AddObject("media1", "a.jpg", 3)

	code, _ := h.do(http.MethodPost, "/api/buckets/5/discover", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := h.do(http.MethodPost, "/api/buckets", map[string]any{"name": "media1", "access_key": "a", "secret_key": "b"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	b := decodeData[bucket.Config](t, env)

	code, env = h.do(http.MethodPost, fmt.Sprintf("/api/buckets/%d/discover", b.ID), map[string]any{"skip_existing": true})
	require.Equal(t, http.StatusOK, code, env.Error)
	result := decodeData[discovery.Result](t, env)
	assert.Equal(t, 1, result.Imported)
}

func TestMetricsAndHealthArePublic(t *testing.T) {
	h := newHarness(t)

	code, _ := h.raw(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

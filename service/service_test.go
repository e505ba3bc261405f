package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"houtveilig/config"
	"houtveilig/handlers"
	"houtveilig/location"
	"houtveilig/storage"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Load()
	cfg.ExportDir = t.TempDir()
	cfg.StaticDir = t.TempDir()
	cfg.Timezone = "UTC"
	cfg.SendGridAPIKey = ""
	cfg.SSOJWTSecret = ""
	return cfg
}

func TestStartRestoresState(t *testing.T) {
	kv := &mapKV{data: map[string]string{
		storage.KeyPreferredName:  "Jan",
		storage.KeyPreferredEmail: "safety@example.com",
		storage.KeyReports:        `[{"id":1,"type":"damage","description":"old","photos":[{"file_name":"a.jpg"}],"photo_count":1}]`,
	}}
	s := New(testConfig(t), kv)
	require.NoError(t, s.Start())
	defer s.Stop()

	h := s.GetHandlers()
	snap := h.Store.Snapshot()
	assert.Equal(t, "Jan", snap.ReporterName)
	assert.Equal(t, "safety@example.com", snap.RecipientEmail)

	reports := h.Reports.List()
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].PhotoCount)
}

func TestSignInNameOverridesRemembered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	kv := &mapKV{data: map[string]string{storage.KeyPreferredName: "Remembered"}}
	s := New(testConfig(t), kv)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Equal(t, "Remembered", s.GetHandlers().Store.Snapshot().ReporterName)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "Signed In"}).SignedString([]byte("k"))
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{"id_token": token})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handlers.SetupRouter(s.GetHandlers()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Signed In", s.GetHandlers().Store.Snapshot().ReporterName)
}

func TestLocationFixReachesDraft(t *testing.T) {
	cfg := testConfig(t)
	cfg.LocationTimeout = time.Second
	s := New(cfg, &mapKV{data: map[string]string{}})
	require.NoError(t, s.Start())
	defer s.Stop()

	h := s.GetHandlers()
	require.NoError(t, h.Provider.Report(location.Fix{Latitude: 52.0907, Longitude: 5.1214, Accuracy: 8}))

	st, loc := h.Acquirer.Acquire(context.Background())
	require.NotNil(t, loc)
	assert.Equal(t, location.StateSuccess, st.State)

	got := h.Store.Snapshot().Location
	require.NotNil(t, got)
	assert.InDelta(t, 52.0907, got.Latitude, 1e-9)
	assert.InDelta(t, 5.1214, got.Longitude, 1e-9)
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(testConfig(t), &mapKV{data: map[string]string{}})
	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

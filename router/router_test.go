package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsp-lib/xsp/config"
)

func testConfig(t *testing.T) *config.Configuration {
	v := viper.New()
	config.SetupViper(v, "")
	cfg, err := config.New(v)
	require.NoError(t, err)
	return cfg
}

func TestNewWiresRoutes(t *testing.T) {
	r, err := New(testConfig(t))
	require.NoError(t, err)
	defer r.Shutdown()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())

	// the adtag route exists and validates input
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/adtag/vast", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewRejectsBadCacheType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Type = "disk"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewRejectsBadStateType(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Type = "dynamo"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSupportCORS(t *testing.T) {
	handler := SupportCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/adtag/vast", nil)
	req.Header.Set("Origin", "https://publisher.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://publisher.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdmin(t *testing.T) {
	rec := httptest.NewRecorder()
	Admin().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

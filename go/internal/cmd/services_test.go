package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bidroom/go/internal/config"
)

const catalogYAML = `
lots:
  - {id: 1, name: Opener, nationality: India, role: BAT, base_price: 2000000, set: Batters 1}
  - {id: 2, name: Quick, nationality: Australia, role: BOWL, base_price: 1500000, set: Marquee}
`

func TestLoadDefaultCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lots.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	cat, err := loadDefaultCatalog(context.Background(), config.CatalogConfig{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	assert.Equal(t, []string{"Batters 1", "Marquee"}, cat.SetOrder())

	cat, err = loadDefaultCatalog(context.Background(), config.CatalogConfig{Path: path, SetOrder: []string{"Marquee"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Marquee", "Batters 1"}, cat.SetOrder())

	cat, err = loadDefaultCatalog(context.Background(), config.CatalogConfig{})
	require.NoError(t, err)
	assert.Nil(t, cat)

	_, err = loadDefaultCatalog(context.Background(), config.CatalogConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestSetupServer_Routes(t *testing.T) {
	cfg := config.Default()
	services, err := setupServices(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(services.Close)
	assert.Nil(t, services.Archive)

	handler := setupServer(&cfg, services).Handler

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/NOPE00/state", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auction_gateway")
}

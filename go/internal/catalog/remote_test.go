package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteDoc = `{"lots":[{"id":1,"name":"A","role":"BOWL","base_price":500000,"set":"S"}]}`

func TestRemoteClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(remoteDoc))
	}))
	defer server.Close()

	client := NewRemoteClient()
	_, err := client.Fetch(context.Background(), server.URL)
	assert.ErrorContains(t, err, "401")

	client.SetHeader("Authorization", "Bearer token")
	c, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLoad_PicksSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(remoteDoc))
	}))
	defer server.Close()

	c, err := Load(context.Background(), server.URL+"/lots.json")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	path := filepath.Join(t.TempDir(), "lots.json")
	require.NoError(t, os.WriteFile(path, []byte(remoteDoc), 0o600))
	c, err = Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

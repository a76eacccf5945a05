package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeParsesFirstResult(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12 Market St", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat":"50.0755","lon":"14.4378"},{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	lat, lon, err := NewClient(srv.URL).Geocode(context.Background(), "12 Market St")
	require.NoError(t, err)
	assert.InDelta(t, 50.0755, lat, 1e-9)
	assert.InDelta(t, 14.4378, lon, 1e-9)
}

func TestGeocodeNoMatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).Geocode(context.Background(), "nowhere")
	assert.Error(t, err)
}

func TestGeocodeProviderError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).Geocode(context.Background(), "12 Market St")
	assert.Error(t, err)
}

package esplora_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satsub/satsub/internal/infrastructure/esplora"
	"github.com/stretchr/testify/require"
)

func TestGetBlockHeight(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/blocks/tip/height", r.URL.Path)
			w.Write([]byte("2500000\n")) // nolint:all
		}))
		defer server.Close()

		height, err := esplora.NewService(server.URL + "/api/").GetBlockHeight(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2_500_000), height)
	})

	t.Run("invalid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/bad/blocks/tip/height" {
				w.Write([]byte("not a number")) // nolint:all
				return
			}
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := esplora.NewService(server.URL).GetBlockHeight(ctx)
		require.ErrorContains(t, err, "unexpected status 503")

		_, err = esplora.NewService(server.URL + "/bad").GetBlockHeight(ctx)
		require.ErrorContains(t, err, "parse height")
	})
}

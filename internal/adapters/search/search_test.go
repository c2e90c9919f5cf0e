package search_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/triage/internal/adapters/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"results":[{"title":"Known crash","url":"https://kb/1","snippet":"fixed in 2.3"}]}`))
	}))
	defer srv.Close()

	p, err := search.NewHTTPProvider(srv.URL, "sk-test")
	require.NoError(t, err)

	results, err := p.Query(context.Background(), "crash on save")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Known crash", results[0].Title)
	assert.Equal(t, "fixed in 2.3", results[0].Snippet)
}

func TestQueryFailures(t *testing.T) {
	t.Run("empty base url", func(t *testing.T) {
		_, err := search.NewHTTPProvider("", "")
		assert.ErrorIs(t, err, search.ErrQueryFailed)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p, err := search.NewHTTPProvider(srv.URL, "")
		require.NoError(t, err)

		_, err = p.Query(context.Background(), "q")
		assert.ErrorIs(t, err, search.ErrQueryFailed)
	})
}

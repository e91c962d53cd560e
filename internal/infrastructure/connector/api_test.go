package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

func apiTestConfig(baseURL string) APIConfig {
	return APIConfig{
		Name:           "Nology",
		BaseURL:        baseURL,
		ProductsPath:   "/products",
		Token:          "test-token",
		Pagination:     PaginationPage,
		PageSize:       2,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		RecordsField:   "products",
		KeyFields:      []string{"sku"},
	}
}

func TestNewAPIConnector_Validation(t *testing.T) {
	logger := zap.NewNop()

	t.Run("missing base url", func(t *testing.T) {
		_, err := NewAPIConnector(APIConfig{Name: "X", Token: "t"}, logger)
		assert.ErrorIs(t, err, supplier.ErrMissingBaseURL)
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := NewAPIConnector(APIConfig{Name: "X", BaseURL: "https://x.example"}, logger)
		assert.ErrorIs(t, err, supplier.ErrMissingCredentials)
	})

	t.Run("basic auth is enough", func(t *testing.T) {
		c, err := NewAPIConnector(APIConfig{
			Name: "X", BaseURL: "https://x.example",
			Username: "u", Password: "p",
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, supplier.ConnectorTypeAPI, c.SupplierInfo().Type)
	})
}

func TestAPIConnector_FetchProducts(t *testing.T) {
	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		page := r.URL.Query().Get("page")

		var products []map[string]any
		if page == "1" {
			products = []map[string]any{
				{"sku": "DEN-AVR-X1800H", "price": "R 12,999.00"},
				{"sku": "DEN-AVR-X2800H", "price": 15999.0},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"products": products})
	}))
	defer server.Close()

	c, err := NewAPIConnector(apiTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	it, err := c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)

	pages := drain(t, it)
	require.Len(t, pages, 1)
	assert.Equal(t, "Bearer test-token", sawAuth)
	assert.Equal(t, "DEN-AVR-X1800H", pages[0].Records[0].String("sku"))

	price, ok := pages[0].Records[0].Decimal("price")
	require.True(t, ok)
	assert.Equal(t, "12999", price.String())
}

func TestAPIConnector_TopLevelArrayResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"sku":"KEF-LS50"}]`)
	}))
	defer server.Close()

	c, err := NewAPIConnector(apiTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	it, err := c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)

	pages := drain(t, it)
	require.Len(t, pages, 1)
	assert.Equal(t, "KEF-LS50", pages[0].Records[0].String("sku"))
}

func TestAPIConnector_IncrementalCursorAndFullSync(t *testing.T) {
	var sinceIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Query().Get("since_id")
		sinceIDs = append(sinceIDs, since)
		if since == "" {
			fmt.Fprint(w, `{"products":[{"id":"100","sku":"DEN-AVR-X1800H"},{"id":"101","sku":"KEF-LS50"}]}`)
			return
		}
		fmt.Fprint(w, `{"products":[]}`)
	}))
	defer server.Close()

	cfg := apiTestConfig(server.URL)
	cfg.Pagination = PaginationSinceID
	c, err := NewAPIConnector(cfg, zap.NewNop())
	require.NoError(t, err)

	// First run walks the whole catalog and leaves a cursor behind.
	it, err := c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, drain(t, it), 1)
	require.Equal(t, []string{"", "101"}, sinceIDs)

	// The next incremental run resumes from the saved cursor.
	sinceIDs = nil
	it, err = c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, drain(t, it))
	assert.Equal(t, []string{"101"}, sinceIDs)

	// A full sync discards the cursor and walks from the beginning.
	sinceIDs = nil
	it, err = c.FetchProducts(context.Background(), supplier.FetchOptions{FullSync: true})
	require.NoError(t, err)
	assert.Len(t, drain(t, it), 1)
	assert.Equal(t, []string{"", "101"}, sinceIDs)
}

func TestAPIConnector_ServerErrorsExhaustRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewAPIConnector(apiTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	it, err := c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)

	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, supplier.ErrPageRetriesExceeded)
	assert.Equal(t, 2, calls)
}

func TestAPIConnector_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>definitely not json</html>`)
	}))
	defer server.Close()

	cfg := apiTestConfig(server.URL)
	cfg.RetryAttempts = 1
	c, err := NewAPIConnector(cfg, zap.NewNop())
	require.NoError(t, err)

	it, err := c.FetchProducts(context.Background(), supplier.FetchOptions{})
	require.NoError(t, err)

	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, supplier.ErrPageRetriesExceeded)
}

func TestAPIConnector_TestConnection(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"products":[]}`)
		}))
		defer server.Close()

		c, err := NewAPIConnector(apiTestConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		ok, err := c.TestConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c, err := NewAPIConnector(apiTestConfig(server.URL), zap.NewNop())
		require.NoError(t, err)

		ok, err := c.TestConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, ok, "auth rejection is a false result, not an error")
	})

	t.Run("unreachable", func(t *testing.T) {
		cfg := apiTestConfig("http://127.0.0.1:1")
		cfg.Timeout = 250 * time.Millisecond
		c, err := NewAPIConnector(cfg, zap.NewNop())
		require.NoError(t, err)

		ok, err := c.TestConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

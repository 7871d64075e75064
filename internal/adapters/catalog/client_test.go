package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...interface{}) {}
func (testLogger) Info(msg string, args ...interface{})  {}
func (testLogger) Warn(msg string, args ...interface{})  {}
func (testLogger) Error(msg string, args ...interface{}) {}
func (testLogger) Fatal(msg string, args ...interface{}) {}

func (testLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (testLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (testLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (testLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l testLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l testLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (testLogger) Sync() error                                                      { return nil }

func newTestClient(baseURL string, maxRetries int) *Client {
	return NewClient(Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		AccessToken:  "test-token",
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
	}, testLogger{})
}

func TestClient_ClientErrorNeverRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	_, err := client.GetListing(context.Background(), 42)

	require.Error(t, err)
	// 4xx терминальна: ровно один запрос независимо от лимита повторов
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.KindTerminalClient, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestClient_ServerErrorRetriedUntilSuccess(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) <= 2 {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"listing_id": 42, "title": "Кружка", "price": {"amount": 1250, "divisor": 100}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	listing, err := client.GetListing(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Equal(t, int64(42), listing.ListingID)
	assert.InDelta(t, 12.50, listing.Price, 0.001)
}

func TestClient_RateLimitRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 0, "results": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)

	_, _, err := client.ListListings(context.Background(), 77, "", 100, 0)

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_RetriesExhausted(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "server error", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)

	err := client.DeleteListing(context.Background(), 42)

	require.Error(t, err)
	// Первая попытка плюс два повтора
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.KindRetryableServer, apiErr.Kind)
}

func TestClient_AuthHeaders(t *testing.T) {
	var gotAPIKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 0, "results": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	_, _, err := client.ListListings(context.Background(), 77, "", 100, 0)

	require.NoError(t, err)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestClient_ListListingsQuery(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"limit":    r.URL.Query().Get("limit"),
			"offset":   r.URL.Query().Get("offset"),
			"state":    r.URL.Query().Get("state"),
			"includes": r.URL.Query().Get("includes"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 1, "results": [{"listing_id": 5, "title": "Кружка"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	count, listings, err := client.ListListings(context.Background(), 77, "active", 100, 200)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, listings, 1)
	assert.Equal(t, int64(5), listings[0].ListingID)
	assert.Equal(t, "100", gotQuery["limit"])
	assert.Equal(t, "200", gotQuery["offset"])
	assert.Equal(t, "active", gotQuery["state"])
	assert.Equal(t, "Inventory", gotQuery["includes"])
}

func TestClient_MalformedBodyNotRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"listing_id": оборванный`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	_, err := client.GetListing(context.Background(), 42)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.KindDataError, apiErr.Kind)
}

func TestClient_TaxonomyCachedAcrossCalls(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 2, "results": [
			{"id": 1, "name": "Home", "children": [{"id": 10, "name": "Kitchen"}]},
			{"id": 2, "name": "Other"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	id, err := client.ResolveTaxonomyID(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	// Повторное разрешение того же имени обслуживается из кэша
	id, err = client.ResolveTaxonomyID(context.Background(), "Other")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	// Вложенный узел находится обходом дерева
	id, err = client.ResolveTaxonomyID(context.Background(), "Kitchen")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
}

func TestClient_UnknownTaxonomyNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 0, "results": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	_, err := client.ResolveTaxonomyID(context.Background(), "Nonexistent")
	require.Error(t, err)
}

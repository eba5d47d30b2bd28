package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadEndpoint returns a base URL that accepts no connections.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	return url
}

// tokenHandler answers the refresh endpoint with a fixed token triple
// and counts requests.
func tokenHandler(t *testing.T, calls *atomic.Int32, access, refresh string, expiresIn int64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/refresh", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["refresh_token"])

		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    expiresIn,
		})
	}
}

func TestRefresher_NoRefreshTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(tokenHandler(t, &calls, "A2", "R2", 900))
	defer server.Close()

	store := NewStore(StoreConfig{FileMode: false})
	refresher := NewRefresher(store, []string{server.URL})

	assert.Empty(t, refresher.Refresh(context.Background()))
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefresher_SuccessPersistsTokens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(tokenHandler(t, &calls, "T2", "R2", 900))
	defer server.Close()

	now := time.Now().Truncate(time.Millisecond)
	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", now.Add(-30*time.Second))

	refresher := NewRefresher(store, []string{server.URL}, withClock(func() time.Time { return now }))

	token := refresher.Refresh(context.Background())
	assert.Equal(t, "T2", token)

	snap := store.Get()
	assert.Equal(t, "T2", snap.AccessToken)
	assert.Equal(t, "R2", snap.RefreshToken)
	assert.WithinDuration(t, now.Add(900*time.Second), snap.ExpiresAt, time.Millisecond)
}

func TestRefresher_FallsThroughDeadCandidates(t *testing.T) {
	var calls atomic.Int32
	alive := httptest.NewServer(tokenHandler(t, &calls, "T2", "R2", 900))
	defer alive.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{deadEndpoint(t), alive.URL})

	token := refresher.Refresh(context.Background())
	assert.Equal(t, "T2", token)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRefresher_FirstDefinitiveResponseEndsSearch(t *testing.T) {
	var firstCalls, secondCalls atomic.Int32
	first := httptest.NewServer(tokenHandler(t, &firstCalls, "FROM_A", "R2", 900))
	defer first.Close()
	second := httptest.NewServer(tokenHandler(t, &secondCalls, "FROM_B", "R2", 900))
	defer second.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{first.URL, second.URL})

	assert.Equal(t, "FROM_A", refresher.Refresh(context.Background()))
	assert.Equal(t, int32(1), firstCalls.Load())
	assert.Equal(t, int32(0), secondCalls.Load())
}

func TestRefresher_401ClearsSessionAndShortCircuits(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "refresh token revoked"})
	}))
	defer rejecting.Close()

	var secondCalls atomic.Int32
	second := httptest.NewServer(tokenHandler(t, &secondCalls, "T2", "R2", 900))
	defer second.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{rejecting.URL, second.URL})

	assert.Empty(t, refresher.Refresh(context.Background()))
	assert.Equal(t, Snapshot{}, store.Get(), "401 must clear the session")
	assert.Equal(t, int32(0), secondCalls.Load(), "remaining candidates must not be tried after 401")
}

func TestRefresher_ServerErrorDoesNotClearSession(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{failing.URL})

	assert.Empty(t, refresher.Refresh(context.Background()))
	assert.Equal(t, "R1", store.Get().RefreshToken, "a non-401 failure must not destroy the refresh token")
}

func TestRefresher_ExhaustionLeavesSessionIntact(t *testing.T) {
	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{deadEndpoint(t), deadEndpoint(t)})

	assert.Empty(t, refresher.Refresh(context.Background()))

	snap := store.Get()
	assert.Equal(t, "T1", snap.AccessToken)
	assert.Equal(t, "R1", snap.RefreshToken)
}

func TestRefresher_ConcurrentCallersShareOneNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Hold the response open long enough for every caller to pile in.
		time.Sleep(150 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "T2",
			"refresh_token": "R2",
			"expires_in":    int64(900),
		})
	}))
	defer server.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{server.URL})

	const callers = 10
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = refresher.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "all concurrent callers must share one refresh call")
	for i, result := range results {
		assert.Equal(t, "T2", result, "caller %d got a different token", i)
	}
}

func TestRefresher_NewAttemptAllowedAfterSettlement(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(tokenHandler(t, &calls, "T2", "R2", 900))
	defer server.Close()

	store := NewStore(StoreConfig{FileMode: false})
	store.SetTokens("T1", "R1", time.Now().Add(-time.Minute))

	refresher := NewRefresher(store, []string{server.URL})

	require.Equal(t, "T2", refresher.Refresh(context.Background()))
	require.Equal(t, "T2", refresher.Refresh(context.Background()))
	assert.Equal(t, int32(2), calls.Load(), "sequential refreshes must each hit the network")
}

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"medchat/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHeaders map[string]string

func (h staticHeaders) Headers(ctx context.Context) map[string]string {
	return h
}

func TestStream_DeliversChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/stream", r.URL.Path)
		require.Equal(t, "p-1", r.URL.Query().Get("patient_id"))
		require.Equal(t, "what is this rash", r.URL.Query().Get("question"))
		require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range []string{
			"event: message\ndata: {\"chunk\":\"It looks \"}\n\n",
			"event: message\ndata: {\"chunk\":\"like eczema.\"}\n\n",
			"event: message\ndata: {\"is_complete\":true}\n\n",
		} {
			w.Write([]byte(event))
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHeaderProvider(staticHeaders{"Authorization": "Bearer T1"}))

	var chunks []string
	var doneCalls int
	err := client.Stream(context.Background(),
		Request{PatientID: "p-1", Question: "what is this rash"},
		func(chunk string) { chunks = append(chunks, chunk) },
		func() { doneCalls++ },
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"It looks ", "like eczema."}, chunks)
	assert.Equal(t, 1, doneCalls)
}

func TestStream_ClinicianModeFlag(t *testing.T) {
	var sawClinicianMode atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawClinicianMode.Store(r.URL.Query().Get("clinician_mode") == "true")
		w.Write([]byte("data: {\"is_complete\":true}\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.Stream(context.Background(),
		Request{PatientID: "p-1", Question: "q", ClinicianMode: true},
		func(string) {}, func() {},
	)
	require.NoError(t, err)
	assert.True(t, sawClinicianMode.Load())
}

func TestStream_ErrorStatusCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "patient record restricted"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var chunkCalls, doneCalls int
	err := client.Stream(context.Background(),
		Request{PatientID: "p-1", Question: "q"},
		func(string) { chunkCalls++ },
		func() { doneCalls++ },
	)

	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "patient record restricted", apiErr.Message)
	assert.Zero(t, chunkCalls)
	assert.Zero(t, doneCalls)
}

func TestStream_EOFWithoutMarkerStillCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: {\"chunk\":\"partial answer\"}\n\n"))
		// Connection closes without an is_complete event.
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var chunks []string
	var doneCalls int
	err := client.Stream(context.Background(),
		Request{PatientID: "p-1", Question: "q"},
		func(chunk string) { chunks = append(chunks, chunk) },
		func() { doneCalls++ },
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"partial answer"}, chunks)
	assert.Equal(t, 1, doneCalls, "onDone must fire exactly once even without a completion marker")
}

func TestStream_CancellationStopsCallbacks(t *testing.T) {
	firstChunk := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"chunk\":\"first\"}\n\n"))
		flusher.Flush()
		close(firstChunk)
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())

	client := NewClient(server.URL)

	var chunkCalls, doneCalls atomic.Int32
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Stream(ctx,
			Request{PatientID: "p-1", Question: "q"},
			func(string) { chunkCalls.Add(1) },
			func() { doneCalls.Add(1) },
		)
	}()

	<-firstChunk
	require.Eventually(t, func() bool { return chunkCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after cancellation")
	}

	assert.Equal(t, int32(1), chunkCalls.Load(), "no chunk callback after cancellation")
	assert.Equal(t, int32(0), doneCalls.Load(), "no completion callback after cancellation")
}

func TestStream_UnreachableServerIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(addr)

	err := client.Stream(context.Background(),
		Request{PatientID: "p-1", Question: "q"},
		func(string) {}, func() {},
	)
	require.Error(t, err)
	assert.True(t, api.IsNetworkError(err))
}

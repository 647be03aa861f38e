package midjourney_client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midjourney_bot/entities"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, _ entities.Preferences) error {
	f.calls++

	return f.err
}

func intPtr(v int) *int {
	return &v
}

var testPrefs = entities.Preferences{
	SessionToken: "token",
	ServerID:     "123456789012345678",
	ChannelID:    "876543210987654321",
}

type bridge struct {
	mu        sync.Mutex
	submitted map[string]map[string]any
	headers   http.Header
	tasks     []taskJSONResponse
	polls     int
}

func (b *bridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/mj/submit/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		body := map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		b.submitted[r.URL.Path] = body
		b.headers = r.Header.Clone()

		_, _ = w.Write([]byte(`{"task_id":"task-1"}`))
	})

	mux.HandleFunc("/mj/task/task-1", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		idx := b.polls
		if idx >= len(b.tasks) {
			idx = len(b.tasks) - 1
		}
		b.polls++

		assert.NoError(t, json.NewEncoder(w).Encode(b.tasks[idx]))
	})

	return mux
}

func newTestClient(t *testing.T, handler http.Handler) (Client, *fakeVerifier) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	verifier := &fakeVerifier{}

	client, err := New(Config{
		Host:         server.URL + "/",
		Preferences:  testPrefs,
		PollInterval: time.Millisecond,
		Verifier:     verifier,
	})
	require.NoError(t, err)

	return client, verifier
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.EqualError(t, err, "missing host")

	client, err := New(Config{Host: "http://localhost:8080"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestImagineReportsProgressAndResult(t *testing.T) {
	b := &bridge{
		submitted: map[string]map[string]any{},
		tasks: []taskJSONResponse{
			{Status: "pending"},
			{Status: "running", Progress: "50%", ImageURL: "uriA"},
			{Status: "running", Progress: "50%", ImageURL: "uriA"},
			{Status: "running", Progress: "100%", ImageURL: "uriB"},
			{
				Status:      "completed",
				Progress:    "done",
				ImageURL:    "uriC",
				MessageID:   "msg-1",
				MessageHash: "hash-1",
				Flags:       intPtr(64),
				Content:     "a cat",
				Buttons: []taskButton{
					{Label: "U1", CustomID: "MJ::JOB::upsample::1::hash-1"},
					{Label: "Custom Zoom", CustomID: "MJ::CustomZoom::hash-1"},
				},
			},
		},
	}

	client, _ := newTestClient(t, b.handler(t))

	type report struct{ uri, progress string }

	var reports []report

	result, err := client.Imagine(context.Background(), "a cat", func(uri, progress string) {
		reports = append(reports, report{uri, progress})
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []report{{"uriA", "50%"}, {"uriB", "100%"}}, reports)
	assert.Equal(t, "msg-1", result.ID)
	assert.Equal(t, "hash-1", result.Hash)
	assert.Equal(t, "uriC", result.URI)
	require.NotNil(t, result.Flags)
	assert.Equal(t, 64, *result.Flags)
	assert.Equal(t, "a cat", result.Content)
	assert.Equal(t, []entities.ActionOption{
		{Label: "U1", CustomID: "MJ::JOB::upsample::1::hash-1"},
		{Label: "Custom Zoom", CustomID: "MJ::CustomZoom::hash-1"},
	}, result.Options)

	assert.Equal(t, "a cat", b.submitted["/mj/submit/imagine"]["prompt"])
	assert.Equal(t, "token", b.headers.Get("X-Discord-Token"))
	assert.Equal(t, testPrefs.ServerID, b.headers.Get("X-Discord-Guild"))
	assert.Equal(t, testPrefs.ChannelID, b.headers.Get("X-Discord-Channel"))
}

func TestActionRequests(t *testing.T) {
	b := &bridge{
		submitted: map[string]map[string]any{},
		tasks:     []taskJSONResponse{{Status: "completed", MessageID: "msg-2", MessageHash: "hash-2"}},
	}

	client, _ := newTestClient(t, b.handler(t))

	req := &ActionRequest{Index: 2, MsgID: "msg-1", Hash: "hash-1", Flags: 0, Content: "a cat"}

	result, err := client.Variation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "msg-2", result.ID)

	_, err = client.Upscale(context.Background(), req)
	require.NoError(t, err)

	_, err = client.Custom(context.Background(), &CustomRequest{
		MsgID:    "msg-1",
		Content:  "a cat --zoom 2",
		CustomID: "MJ::CustomZoom::hash-1",
	})
	require.NoError(t, err)

	variation := b.submitted["/mj/submit/variation"]
	assert.EqualValues(t, 2, variation["index"])
	assert.Equal(t, "msg-1", variation["msg_id"])
	assert.Equal(t, "hash-1", variation["hash"])

	assert.Contains(t, b.submitted, "/mj/submit/upscale")

	custom := b.submitted["/mj/submit/custom"]
	assert.Equal(t, "MJ::CustomZoom::hash-1", custom["custom_id"])
	assert.Equal(t, "a cat --zoom 2", custom["content"])
}

func TestCustomRequiresCustomID(t *testing.T) {
	client, err := New(Config{Host: "http://localhost:1", Verifier: &fakeVerifier{}})
	require.NoError(t, err)

	_, err = client.Custom(context.Background(), &CustomRequest{MsgID: "msg-1"})
	assert.EqualError(t, err, "missing custom ID")

	_, err = client.Variation(context.Background(), nil)
	assert.EqualError(t, err, "missing request")
}

func TestHTTPErrorsCarryStatusLine(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid token\n"))
	}))

	result, err := client.Imagine(context.Background(), "a cat", nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401 Unauthorized: invalid token")
}

func TestEmptyTaskIDIsEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":""}`))
	}))

	result, err := client.Imagine(context.Background(), "a cat", nil)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestUnknownTaskIsEmptyResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mj/submit/imagine", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"gone"}`))
	})

	client, _ := newTestClient(t, mux)

	result, err := client.Imagine(context.Background(), "a cat", nil)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestFailedTaskReturnsReason(t *testing.T) {
	b := &bridge{
		submitted: map[string]map[string]any{},
		tasks:     []taskJSONResponse{{Status: "failed", FailReason: "banned prompt detected"}},
	}

	client, _ := newTestClient(t, b.handler(t))

	_, err := client.Imagine(context.Background(), "a cat", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned prompt detected")
}

func TestWaitStopsOnContextCancel(t *testing.T) {
	b := &bridge{
		submitted: map[string]map[string]any{},
		tasks:     []taskJSONResponse{{Status: "running", Progress: "10%"}},
	}

	client, _ := newTestClient(t, b.handler(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Imagine(ctx, "a cat", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timeout")
}

func TestInitUsesVerifier(t *testing.T) {
	client, verifier := newTestClient(t, http.NotFoundHandler())

	require.NoError(t, client.Init(context.Background()))
	require.NoError(t, client.Init(context.Background()))
	assert.Equal(t, 2, verifier.calls)

	verifier.err = errors.New("HTTP 401 Unauthorized")
	assert.EqualError(t, client.Init(context.Background()), "HTTP 401 Unauthorized")
}

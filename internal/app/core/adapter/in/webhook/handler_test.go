package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []domain.NormalizedEvent
	err    error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, ev domain.NormalizedEvent) (usecase.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return usecase.Result{Command: usecase.Classify(ev)}, d.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Response
}

func (n *recordingNotifier) Send(ctx context.Context, resp domain.Response) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, resp)
	return nil
}

const (
	startUpdate    = `{"update_id":1,"message":{"message_id":10,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"/start"}}`
	callbackUpdate = `{"update_id":2,"callback_query":{"id":"cb1","from":{"id":42,"is_bot":false,"first_name":"Ann"},"message":{"message_id":9,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"menu"},"chat_instance":"ci","data":"earn"}}`
	editUpdate     = `{"update_id":3,"edited_message":{"message_id":10,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"edited"}}`

	// 群組裡按下按鈕：from 是使用者，chat 是群組
	groupStartUpdate     = `{"update_id":4,"message":{"message_id":11,"date":1700000000,"from":{"id":42,"is_bot":false,"first_name":"Ann"},"chat":{"id":-100500,"type":"group"},"text":"/start"}}`
	groupCallbackUpdate  = `{"update_id":5,"callback_query":{"id":"cb2","from":{"id":42,"is_bot":false,"first_name":"Ann"},"message":{"message_id":12,"date":1700000000,"chat":{"id":-100500,"type":"group"},"text":"menu"},"chat_instance":"ci","data":"balance"}}`
	inlineCallbackUpdate = `{"update_id":6,"callback_query":{"id":"cb3","from":{"id":77,"is_bot":false,"first_name":"Bo"},"inline_message_id":"im1","chat_instance":"ci","data":"earn"}}`
)

func post(t *testing.T, h http.Handler, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestHandler(d Dispatcher, limiter *Limiter, cfg Config) *Handler {
	h := NewHandler(d, limiter, cfg, zap.NewNop())
	h.now = func() time.Time { return time.Unix(1000, 0) }
	return h
}

func TestUpdateHandlerNormalizesEvents(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, nil, Config{Path: "/webhook"})

	rec := post(t, h, "/webhook", startUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = post(t, h, "/webhook", callbackUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, d.events, 2)
	assert.Equal(t, domain.NormalizedEvent{
		UpdateID: 1, Identity: "42", Kind: domain.EventKindMessage, Text: "/start", Timestamp: 1000,
	}, d.events[0])
	assert.Equal(t, domain.NormalizedEvent{
		UpdateID: 2, Identity: "42", Kind: domain.EventKindCallback, CallbackData: "earn", Timestamp: 1000,
	}, d.events[1])

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "action", body["command"])
}

func TestCallbackIdentityMatchesMessageIdentity(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, nil, Config{Path: "/webhook"})

	for _, body := range []string{groupStartUpdate, groupCallbackUpdate, inlineCallbackUpdate} {
		require.Equal(t, http.StatusOK, post(t, h, "/webhook", body, nil).Code)
	}

	require.Len(t, d.events, 3)
	assert.Equal(t, "-100500", d.events[0].Identity)
	assert.Equal(t, "-100500", d.events[1].Identity)
	assert.Equal(t, domain.EventKindCallback, d.events[1].Kind)
	assert.Equal(t, "77", d.events[2].Identity)
}

func TestUpdateHandlerIgnoresOtherUpdates(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, nil, Config{Path: "/webhook"})

	rec := post(t, h, "/webhook", editUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ignored":true`)
	assert.Empty(t, d.events)
}

func TestUpdateHandlerRejectsMalformedBody(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, nil, Config{Path: "/webhook"})

	rec := post(t, h, "/webhook", `{"update_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.events)
}

func TestUpdateHandlerSecret(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, nil, Config{Path: "/webhook", SecretToken: "s3cret"})

	rec := post(t, h, "/webhook", startUpdate, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = post(t, h, "/webhook", startUpdate, map[string]string{SecretHeader: "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, d.events)

	rec = post(t, h, "/webhook", startUpdate, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.events, 1)
}

func TestUpdateHandlerRateLimit(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(d, NewLimiter(0.001, 1), Config{Path: "/webhook"})

	rec := post(t, h, "/webhook", callbackUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = post(t, h, "/webhook", callbackUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dropped":true`)
	assert.Len(t, d.events, 1)
}

func TestUpdateHandlerErrors(t *testing.T) {
	d := &fakeDispatcher{err: domain.ErrStorageWrite}
	h := newTestHandler(d, nil, Config{Path: "/webhook"})
	rec := post(t, h, "/webhook", startUpdate, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	d.err = fmt.Errorf("%w: missing identity", domain.ErrInvalidEvent)
	rec = post(t, h, "/webhook", startUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthLiveAndMetrics(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{}, nil, Config{Path: "/webhook"})

	for _, path := range []string{"/healthz", "/webhook", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "earnbot_http_requests_total")
}

func TestWebhookEndToEnd(t *testing.T) {
	store := memory.NewMutexStore(nil, zap.NewNop())
	notifier := &recordingNotifier{}
	core := usecase.NewCoreUseCase(store, notifier, zap.NewNop(),
		usecase.WithDeduper(memory.NewDeduper(time.Hour)),
	)
	h := newTestHandler(core, nil, Config{Path: "/"})

	require.Equal(t, http.StatusOK, post(t, h, "/", startUpdate, nil).Code)
	require.Equal(t, http.StatusOK, post(t, h, "/", callbackUpdate, nil).Code)
	// Telegram 重送同一個 update
	require.Equal(t, http.StatusOK, post(t, h, "/", callbackUpdate, nil).Code)

	a, err := store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Balance)
	assert.Equal(t, int64(1000), a.LastEarn)
	assert.Len(t, notifier.sent, 2)
}

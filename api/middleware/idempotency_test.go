package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttl[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	f.ttl[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

type failingStore struct {
	*fakeStore
}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func checkoutRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(WithUserID(req.Context(), "user-1"))
}

func TestMatchRule(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		ok       bool
		critical bool
	}{
		{"checkout", http.MethodPost, "/api/v1/orders/checkout", true, true},
		{"cancel", http.MethodPost, "/api/v1/orders/abc/cancel", true, true},
		{"submit payment", http.MethodPost, "/api/v1/orders/abc/payment", true, false},
		{"admin verify", http.MethodPost, "/api/admin/v1/orders/abc/payment/verify", true, false},
		{"order list", http.MethodGet, "/api/v1/orders", false, false},
		{"cart line", http.MethodPost, "/api/v1/cart/lines", false, false},
	}

	for _, tt := range tests {
		rule, ok := matchRule(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && rule.critical != tt.critical {
			t.Fatalf("%s: expected critical=%v got %v", tt.name, tt.critical, rule.critical)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutRequest(`{}`, ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 48*time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_ref":"CMERCH-2026-000001"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest(`{"notes":"hi"}`, "abc"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest(`{"notes":"hi"}`, "abc"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body mismatch: %s vs %s", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	key := store.IdempotencyKey("user-1|POST|/api/v1/orders/checkout", "abc")
	if store.ttl[key] != 48*time.Hour {
		t.Fatalf("expected critical ttl, got %v", store.ttl[key])
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{"notes":"a"}`, "abc"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutRequest(`{"notes":"b"}`, "abc"))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	key := store.IdempotencyKey("user-1|POST|/api/v1/orders/checkout", "abc")
	store.data[key] = pendingMarker

	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutRequest(`{}`, "abc"))

	if resp.Code != http.StatusConflict || calls != 0 {
		t.Fatalf("expected 409 without handler call, got %d calls=%d", resp.Code, calls)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "abc"))
	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "abc"))

	if calls != 2 {
		t.Fatalf("expected retry after server error, handler ran %d times", calls)
	}
}

func TestIdempotencyStoreFailure(t *testing.T) {
	handler := Idempotency(failingStore{newFakeStore()}, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run when the store is down")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, checkoutRequest(`{}`, "abc"))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", strings.NewReader(`{}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if calls != 1 {
		t.Fatalf("expected passthrough")
	}
}

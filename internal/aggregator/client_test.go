package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:        srv.URL,
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		VUASuffix:      "@testaa",
		InitialBackoff: time.Millisecond,
		PollInterval:   time.Millisecond,
		PollAttempts:   3,
	}, zerolog.Nop())
}

func TestRetryThenSuccess(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ConsentResponse{ID: "consent-1", Status: ConsentStatusPending})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.CreateConsent(context.Background(), "9999999999",
		civil.Date{Year: 2024, Month: 1, Day: 1}, civil.Date{Year: 2024, Month: 3, Day: 31})
	if err != nil {
		t.Fatalf("CreateConsent: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if resp.ID != "consent-1" {
		t.Errorf("consent ID = %q", resp.ID)
	}
}

func TestRetryExhaustion(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.ConsentStatus(context.Background(), "consent-1", false)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want *APIError with 503", err)
	}
}

func TestNonRetryableFailsFast(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.ConsentStatus(context.Background(), "consent-1", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 400)", attempts)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("err = %v, want *APIError with 400", err)
	}
}

func TestCreateConsentRequestShape(t *testing.T) {
	var got ConsentRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ConsentResponse{ID: "consent-1"})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateConsent(context.Background(), "9999999999",
		civil.Date{Year: 2024, Month: 1, Day: 1}, civil.Date{Year: 2024, Month: 3, Day: 31})
	if err != nil {
		t.Fatalf("CreateConsent: %v", err)
	}

	if got.VUA != "9999999999@testaa" {
		t.Errorf("vua = %q", got.VUA)
	}
	if got.ConsentDuration.Unit != "MONTH" {
		t.Errorf("duration unit = %q", got.ConsentDuration.Unit)
	}
	if got.DataRange.From != "2024-01-01T00:00:00.000Z" {
		t.Errorf("range from = %q", got.DataRange.From)
	}
	if got.DataRange.To != "2024-03-31T23:59:59.999Z" {
		t.Errorf("range to = %q", got.DataRange.To)
	}
	if headers.Get("x-client-id") != "client-id" || headers.Get("x-client-secret") != "client-secret" {
		t.Errorf("credential headers missing: %v", headers)
	}
}

func TestCreateConsentSwapsInvertedRange(t *testing.T) {
	var got ConsentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ConsentResponse{ID: "consent-1"})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateConsent(context.Background(), "9999999999",
		civil.Date{Year: 2024, Month: 3, Day: 31}, civil.Date{Year: 2024, Month: 1, Day: 1})
	if err != nil {
		t.Fatalf("CreateConsent: %v", err)
	}
	if got.DataRange.From != "2024-01-01T00:00:00.000Z" || got.DataRange.To != "2024-03-31T23:59:59.999Z" {
		t.Errorf("range = %q..%q, want swapped", got.DataRange.From, got.DataRange.To)
	}
}

func TestCreateDataSessionSwapsInvertedRange(t *testing.T) {
	var got DataSessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(DataSessionResponse{ID: "session-1", Status: SessionStatusPending})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateDataSession(context.Background(), "consent-1",
		civil.Date{Year: 2024, Month: 3, Day: 31}, civil.Date{Year: 2024, Month: 1, Day: 1})
	if err != nil {
		t.Fatalf("CreateDataSession: %v", err)
	}
	if got.DataRange.From != "2024-01-01T00:00:00.000Z" || got.DataRange.To != "2024-03-31T23:59:59.999Z" {
		t.Errorf("inverted range not swapped: %+v", got.DataRange)
	}
}

func TestFetchSessionDataPollsUntilReady(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := SessionStatusPending
		if polls >= 2 {
			status = SessionStatusCompleted
		}
		json.NewEncoder(w).Encode(FIDataResponse{ID: "session-1", Status: status})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.FetchSessionData(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	if resp.Status != SessionStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", resp.Status)
	}
	if polls != 2 {
		t.Errorf("polls = %d, want 2", polls)
	}
}

func TestFetchSessionDataExhaustionReturnsLastResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FIDataResponse{ID: "session-1", Status: SessionStatusPending})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.FetchSessionData(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	if resp == nil || resp.Status != SessionStatusPending {
		t.Errorf("exhausted poll should return the last pending response, got %+v", resp)
	}
}

func TestFetchSessionDataFailedReturnedAsIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FIDataResponse{ID: "session-1", Status: SessionStatusFailed})
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.FetchSessionData(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	if resp.Status != SessionStatusFailed {
		t.Errorf("status = %q, want FAILED passed through", resp.Status)
	}
}

func TestRevokeConsent(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.RevokeConsent(context.Background(), "consent-1"); err != nil {
		t.Fatalf("RevokeConsent: %v", err)
	}
	if method != http.MethodDelete || path != "/consents/consent-1" {
		t.Errorf("got %s %s", method, path)
	}
}

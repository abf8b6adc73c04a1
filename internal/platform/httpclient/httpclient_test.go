package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSON(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("X-Token") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := New(0)
	if err := c.PostJSON(context.Background(), ts.URL, map[string]string{"X-Token": "abc"}, map[string]string{"title": "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["title"] != "hi" {
		t.Fatalf("body not delivered: %v", got)
	}
}

func TestPostJSON_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := New(0).PostJSON(context.Background(), ts.URL, nil, struct{}{})
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadGateway || he.Body != "nope" {
		t.Fatalf("expected HTTPError 502, got %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	for _, bad := range []string{"", "relative/path", "ftp://example.com/x"} {
		if ValidateURL(bad) == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := ValidateURL("https://hooks.example.com/pet"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoJSON_DecodesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["token"]})
	}))
	defer ts.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := New(0).DoJSON(context.Background(), http.MethodPost, ts.URL, nil, map[string]string{"token": "t-1"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Echo != "t-1" {
		t.Fatalf("expected echoed token, got %+v", out)
	}
}

func TestDoJSON_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	var out map[string]any
	if err := New(0).DoJSON(context.Background(), http.MethodGet, ts.URL, nil, nil, &out); err == nil {
		t.Fatalf("expected decode error")
	}
}

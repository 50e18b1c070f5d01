package drivers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPInvokeJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"sum": body["a"].(float64) + body["b"].(float64)})
	}))
	defer server.Close()

	driver := NewHTTP()
	out, err := driver.Invoke(context.Background(), Endpoint{
		URL:     server.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
	}, map[string]any{"a": 20, "b": 22})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	decoded, ok := out.(map[string]any)
	if !ok || decoded["sum"] != float64(42) {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestHTTPInvokeGetPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	driver := NewHTTP()
	out, err := driver.Invoke(context.Background(), Endpoint{URL: server.URL, Method: "GET"}, nil)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "pong" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestHTTPInvokeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	driver := NewHTTP()
	if _, err := driver.Invoke(context.Background(), Endpoint{URL: server.URL}, nil); err == nil {
		t.Fatalf("expected error for 4xx status")
	}
}

func TestHTTPRejectsBadBinding(t *testing.T) {
	driver := NewHTTP()
	if _, err := driver.Invoke(context.Background(), 42, nil); err == nil {
		t.Fatalf("expected error for non-endpoint binding")
	}
}

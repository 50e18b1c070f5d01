package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint is the binding type the HTTP driver executes.
type Endpoint struct {
	URL     string
	Method  string
	Headers map[string]string
}

// HTTP runs specs whose binding is an Endpoint. The task input is sent as a
// JSON body for methods that carry one; JSON responses are decoded, anything
// else comes back as a string.
type HTTP struct {
	client *http.Client
}

// HTTPOption configures the HTTP driver.
type HTTPOption func(*HTTP)

// WithHTTPClient substitutes the underlying client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTP) {
		if client != nil {
			d.client = client
		}
	}
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(d *HTTP) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// NewHTTP creates the HTTP driver.
func NewHTTP(opts ...HTTPOption) *HTTP {
	d := &HTTP{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke implements executor.Driver.
func (d *HTTP) Invoke(ctx context.Context, binding any, input any) (any, error) {
	endpoint, err := endpointFromBinding(binding)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(endpoint.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if input != nil && method != http.MethodGet && method != http.MethodHead {
		encoded, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("endpoint %s returned %s", endpoint.URL, resp.Status)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err == nil {
			return decoded, nil
		}
	}
	return string(payload), nil
}

func endpointFromBinding(binding any) (Endpoint, error) {
	switch b := binding.(type) {
	case Endpoint:
		return b, nil
	case *Endpoint:
		if b == nil {
			return Endpoint{}, fmt.Errorf("endpoint binding is nil")
		}
		return *b, nil
	default:
		return Endpoint{}, fmt.Errorf("binding of type %T is not an endpoint", binding)
	}
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPProxy resolves links over HTTP with JSON representations.
//
// A resource document has the shape:
//
//	{"data": {...}, "links": {"self": "...", "commands.reserve": "..."}}
//
// Commands are invoked with POST to the command link.
type HTTPProxy struct {
	client *http.Client
}

// NewHTTPProxy creates an HTTP proxy. A nil client gets a default with a
// request timeout.
func NewHTTPProxy(client *http.Client) *HTTPProxy {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPProxy{client: client}
}

// Resolve implements Proxy.
func (p *HTTPProxy) Resolve(ctx context.Context, link string) (Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Resource{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Resource{}, fmt.Errorf("resolve %s: %w", link, err)
	}
	defer resp.Body.Close()

	return decodeResource(resp)
}

// Command implements Proxy.
func (p *HTTPProxy) Command(ctx context.Context, resource Resource, name string, body map[string]any) (Resource, error) {
	link := resource.CommandLink(name)
	if link == "" {
		return Resource{}, apperrors.WithMetadata(
			apperrors.CodeRemoteStepFailure,
			fmt.Sprintf("resource has no command %q", name),
			map[string]string{"command": name},
		)
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Resource{}, fmt.Errorf("marshal command body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, payload)
	if err != nil {
		return Resource{}, fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Resource{}, fmt.Errorf("command %s: %w", name, err)
	}
	defer resp.Body.Close()

	return decodeResource(resp)
}

type resourceDocument struct {
	Data  map[string]any    `json:"data"`
	Links map[string]string `json:"links"`
}

func decodeResource(resp *http.Response) (Resource, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Resource{}, fmt.Errorf("remote returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var doc resourceDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	return Resource{Body: doc.Data, Links: doc.Links}, nil
}

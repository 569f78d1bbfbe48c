// Package upstream calls the external CNPJ/CPF data provider.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kiranshivaraju/consulta/internal/config"
	"github.com/kiranshivaraju/consulta/pkg/document"
)

// Sentinel errors for provider failures. Every failure wraps ErrUnavailable;
// timeouts additionally wrap ErrTimeout.
var (
	ErrUnavailable = errors.New("upstream unavailable")
	ErrTimeout     = errors.New("upstream timeout")
)

const maxBodyBytes = 4 << 20

// Client is the interface for looking up a document at the provider.
type Client interface {
	Lookup(ctx context.Context, doc document.Document) (map[string]any, error)
}

// HTTPClient implements Client against the provider's REST API:
// GET {base}/{cnpj} and GET {base}/cpf/{cpf}.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a provider client. cfg.ConnectTimeout bounds dialing and
// the TLS handshake; cfg.Timeout bounds the whole exchange.
func NewHTTPClient(cfg config.UpstreamConfig) *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// Lookup fetches the provider's record for doc and returns its JSON object verbatim.
// Numbers are kept as json.Number so they round-trip unchanged.
func (c *HTTPClient) Lookup(ctx context.Context, doc document.Document) (map[string]any, error) {
	u, err := c.lookupURL(doc)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		if isTimeout(err) {
			return nil, classifyError(err)
		}
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: response is not a JSON object", ErrUnavailable)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", ErrUnavailable)
	}

	return payload, nil
}

func (c *HTTPClient) lookupURL(doc document.Document) (string, error) {
	switch doc.Type {
	case document.CNPJ:
		return fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(doc.Number)), nil
	case document.CPF:
		return fmt.Sprintf("%s/cpf/%s", c.baseURL, url.PathEscape(doc.Number)), nil
	default:
		return "", fmt.Errorf("unsupported document type %q", doc.Type)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w: %v", ErrUnavailable, ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

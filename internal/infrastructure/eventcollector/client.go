// Package eventcollector is the signed HTTP client for the event collector
// management API.
package eventcollector

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ecselfservice/internal/adapters/metrics"
	"ecselfservice/internal/domain"
	"ecselfservice/internal/infrastructure/signer"
)

const (
	DefaultConnectTimeout = 3050 * time.Millisecond
	DefaultReadTimeout    = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// Config locates the backend and bounds every call.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// HTTPClient overrides the default transport. Its timeouts are left as is.
	HTTPClient *http.Client
}

// Client calls the event collector management API. Every request is signed.
type Client struct {
	baseURL string
	signer  *signer.Signer
	http    *http.Client
	now     func() time.Time
}

// NewHTTPClient builds a client whose dial and response-header waits are
// bounded by the connect and read timeouts.
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{Transport: transport, Timeout: connectTimeout + 2*readTimeout}
}

// NewClient builds a client for cfg.BaseURL, ignoring trailing slashes.
func NewClient(cfg Config, s *signer.Signer) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  s,
		http:    httpClient,
		now:     time.Now,
	}
}

type createRequest struct {
	CreatedBy string `json:"createdBy"`
}

type applicationPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedOn Timestamp `json:"createdOn"`
}

func (p applicationPayload) toDomain() domain.Application {
	return domain.Application{
		ID:        p.ID,
		Name:      p.Name,
		CreatedBy: p.CreatedBy,
		CreatedOn: p.CreatedOn.Time(),
		Events:    []domain.Event{},
	}
}

type eventPayload struct {
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedOn Timestamp `json:"createdOn"`
}

type eventsResponse struct {
	App struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"app"`
	Events []eventPayload `json:"events"`
}

// CreateApplication registers name and returns the application as confirmed
// by the backend.
func (c *Client) CreateApplication(ctx context.Context, name, createdBy string) (domain.Application, error) {
	path := "v1/a/apps/" + name
	var out applicationPayload
	if err := c.do(ctx, "create_app", http.MethodPost, path, createRequest{CreatedBy: createdBy}, &out); err != nil {
		return domain.Application{}, err
	}
	return out.toDomain(), nil
}

// CreateEvent registers name under app. The backend does not assign event
// identifiers, so a ULID is minted from the confirmed creation time.
func (c *Client) CreateEvent(ctx context.Context, app domain.Application, name, createdBy string) (domain.Event, error) {
	path := "v1/a/apps/" + app.Name + "/events/" + name
	var out eventPayload
	if err := c.do(ctx, "create_event", http.MethodPost, path, createRequest{CreatedBy: createdBy}, &out); err != nil {
		return domain.Event{}, err
	}
	event, err := c.newEvent(out, app.ID, rand.Reader)
	if err != nil {
		return domain.Event{}, fmt.Errorf("create_event: %w", err)
	}
	return event, nil
}

// ListApplications returns every application without its events.
func (c *Client) ListApplications(ctx context.Context) ([]domain.Application, error) {
	var out []applicationPayload
	if err := c.do(ctx, "list_apps", http.MethodGet, "v1/a/apps", nil, &out); err != nil {
		return nil, err
	}
	apps := make([]domain.Application, 0, len(out))
	for _, p := range out {
		apps = append(apps, p.toDomain())
	}
	return apps, nil
}

// ListEvents returns the events of app, each tagged with the application id
// reported by the backend.
func (c *Client) ListEvents(ctx context.Context, app domain.Application) ([]domain.Event, error) {
	var out eventsResponse
	if err := c.do(ctx, "list_events", http.MethodGet, "v1/a/apps/"+app.Name+"/events", nil, &out); err != nil {
		return nil, err
	}
	// One monotonic source per listing: events sharing a millisecond get
	// increasing identifiers in listing order.
	entropy := ulid.Monotonic(rand.Reader, 0)
	events := make([]domain.Event, 0, len(out.Events))
	for _, p := range out.Events {
		event, err := c.newEvent(p, out.App.ID, entropy)
		if err != nil {
			return nil, fmt.Errorf("list_events: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *Client) newEvent(p eventPayload, parentAppID string, entropy io.Reader) (domain.Event, error) {
	createdOn := p.CreatedOn.Time()
	if createdOn.IsZero() {
		createdOn = c.now().UTC()
	}
	id, err := mintID(createdOn, entropy)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %q: %w", p.Name, err)
	}
	return domain.Event{
		ID:          id,
		Name:        p.Name,
		CreatedBy:   p.CreatedBy,
		CreatedOn:   createdOn,
		ParentAppID: parentAppID,
	}, nil
}

// mintID builds a ULID whose time component is createdOn. ULIDs cover
// 1970-01-01 up to ulid.MaxTime milliseconds.
func mintID(createdOn time.Time, entropy io.Reader) (string, error) {
	ms := createdOn.UnixMilli()
	if ms < 0 || uint64(ms) > ulid.MaxTime() {
		return "", fmt.Errorf("mint id: createdOn %s outside the identifier range", createdOn.Format(time.RFC3339))
	}
	id, err := ulid.New(uint64(ms), entropy)
	if err != nil {
		return "", fmt.Errorf("mint id: %w", err)
	}
	return id.String(), nil
}

// do signs and sends one request. There is no retry: callers decide.
func (c *Client) do(ctx context.Context, operation, method, path string, body any, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveBackendCall(operation, err, time.Since(started)) }()

	payload := []byte{}
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
	}

	var reader io.Reader
	if method != http.MethodGet {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.signer.Sign(method, path, payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode != http.StatusOK {
		return mapError(resp.StatusCode, raw, readErr)
	}
	if readErr != nil {
		return fmt.Errorf("%s: read response: %w", operation, readErr)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

package eventcollector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecselfservice/internal/domain"
	"ecselfservice/internal/infrastructure/signer"
)

const testSecret = "c3VwZXItc2VjcmV0LWtleQ=="

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   []byte
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	s, err := signer.NewSigner(testSecret)
	require.NoError(t, err)
	return NewClient(Config{BaseURL: srv.URL + "//"}, s), &seen
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateApplication_SignsAndDecodes(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "01HQZX3K6T6Y8W1R0M2N4P5Q7S", "name": "billing", "createdBy": "octocat", "createdOn": 1709287200000,
		})
	})

	app, err := client.CreateApplication(context.Background(), "billing", "octocat")
	require.NoError(t, err)
	assert.Equal(t, "01HQZX3K6T6Y8W1R0M2N4P5Q7S", app.ID)
	assert.Equal(t, "billing", app.Name)
	assert.Equal(t, "octocat", app.CreatedBy)
	assert.Equal(t, time.UnixMilli(1709287200000).UTC(), app.CreatedOn)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/a/apps/billing", req.path)
	assert.JSONEq(t, `{"createdBy":"octocat"}`, string(req.body))
	want := "Bearer " + signer.Sign(http.MethodPost, "v1/a/apps/billing", req.body, nil, []byte("super-secret-key"))
	assert.Equal(t, want, req.auth)
}

func TestCreateEvent_MintsSortableIdentifier(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"name": "invoice_created", "createdBy": "octocat", "createdOn": "2024-03-01T10:00:00Z"})
	})

	parent := domain.Application{ID: "01HQZX3K6T6Y8W1R0M2N4P5Q7S", Name: "billing"}
	event, err := client.CreateEvent(context.Background(), parent, "invoice_created", "octocat")
	require.NoError(t, err)

	assert.Equal(t, "invoice_created", event.Name)
	assert.Equal(t, parent.ID, event.ParentAppID)
	id, err := ulid.ParseStrict(event.ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)), id.Time())

	require.Len(t, *seen, 1)
	assert.Equal(t, "/v1/a/apps/billing/events/invoice_created", (*seen)[0].path)
}

func TestListApplications_SignsEmptyPayload(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "01B", "name": "billing", "createdBy": "octocat", "createdOn": 1709287200},
			{"id": "01A", "name": "payments", "createdBy": "hubot", "createdOn": 1709287100},
		})
	})

	apps, err := client.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "billing", apps[0].Name)
	assert.Empty(t, apps[0].Events)
	assert.Equal(t, time.Unix(1709287200, 0).UTC(), apps[0].CreatedOn)

	req := (*seen)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Empty(t, req.body)
	assert.Equal(t, "Bearer "+signer.Sign(http.MethodGet, "v1/a/apps", nil, nil, []byte("super-secret-key")), req.auth)
}

func TestListEvents_TagsParentFromResponse(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"app": map[string]any{"id": "01APP", "name": "billing"},
			"events": []map[string]any{
				{"name": "invoice_created", "createdBy": "octocat", "createdOn": 1709287200000},
				{"name": "invoice_paid", "createdBy": "octocat", "createdOn": 1709287300000},
			},
		})
	})

	events, err := client.ListEvents(context.Background(), domain.Application{ID: "01APP", Name: "billing"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "01APP", e.ParentAppID)
		assert.Len(t, e.ID, 26)
	}
	assert.Less(t, events[0].ID, events[1].ID)
	assert.Equal(t, "/v1/a/apps/billing/events", (*seen)[0].path)
}

func TestListEvents_RejectsPreEpochCreatedOn(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"app": map[string]any{"id": "01APP", "name": "billing"},
			"events": []map[string]any{
				{"name": "invoice_created", "createdBy": "octocat", "createdOn": "1969-12-31T23:59:59Z"},
			},
		})
	})

	var err error
	assert.NotPanics(t, func() {
		_, err = client.ListEvents(context.Background(), domain.Application{ID: "01APP", Name: "billing"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice_created")
}

func TestCreateEvent_RejectsPreEpochCreatedOn(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "invoice_created", "createdBy": "octocat", "createdOn": "1969-12-31T23:59:59Z",
		})
	})

	var err error
	assert.NotPanics(t, func() {
		_, err = client.CreateEvent(context.Background(), domain.Application{ID: "01APP", Name: "billing"}, "invoice_created", "octocat")
	})
	require.Error(t, err)
}

func TestListEvents_SameMillisecondIdentifiersFollowListing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"app": map[string]any{"id": "01APP", "name": "billing"},
			"events": []map[string]any{
				{"name": "first", "createdBy": "octocat", "createdOn": 1709287200000},
				{"name": "second", "createdBy": "octocat", "createdOn": 1709287200000},
				{"name": "third", "createdBy": "octocat", "createdOn": 1709287200000},
			},
		})
	})

	for i := 0; i < 20; i++ {
		events, err := client.ListEvents(context.Background(), domain.Application{ID: "01APP", Name: "billing"})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Less(t, events[0].ID, events[1].ID)
		assert.Less(t, events[1].ID, events[2].ID)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "schema evolution",
			status: http.StatusBadRequest,
			body: `{"type":"https://eventcollector.we.co/v1/errors#schema-evolution-error","detail":"incompatible schema",
				"errors":[{"title":"removed","fieldName":"amount","detail":"field removed"}]}`,
			check: func(t *testing.T, err error) {
				var se *domain.SchemaEvolutionError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "incompatible schema", se.Detail)
				assert.Equal(t, []string{"title=[removed] field=[amount] detail=[field removed]"}, se.FieldErrors)
			},
		},
		{
			name:   "unknown type falls back to detail",
			status: http.StatusConflict,
			body:   `{"type":"https://eventcollector.we.co/v1/errors#duplicate","detail":"app exists"}`,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "app exists", apiErr.Detail)
			},
		},
		{
			name:   "missing type keeps detail",
			status: http.StatusInternalServerError,
			body:   `{"detail":"storage offline"}`,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "storage offline", apiErr.Detail)
			},
		},
		{
			name:   "schema evolution without detail",
			status: http.StatusBadRequest,
			body:   `{"type":"https://eventcollector.we.co/v1/errors#schema-evolution-error"}`,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, strings.HasPrefix(apiErr.Detail, "unknown API response"))
			},
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var apiErr *domain.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Contains(t, apiErr.Detail, "unknown API response")
				assert.Contains(t, apiErr.Detail, "status=[502]")
				assert.Contains(t, apiErr.Detail, "bad gateway")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.CreateApplication(context.Background(), "billing", "octocat")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDomain)
			tt.check(t, err)
		})
	}
}

func TestReadTimeoutFailsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	s, err := signer.NewSigner(testSecret)
	require.NoError(t, err)
	client := NewClient(Config{BaseURL: srv.URL, ConnectTimeout: time.Second, ReadTimeout: 50 * time.Millisecond}, s)

	_, err = client.ListApplications(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDomain)
}

func TestNoRetryOnFailure(t *testing.T) {
	client, seen := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "try later"})
	})
	_, err := client.ListApplications(context.Background())
	require.Error(t, err)
	assert.Len(t, *seen, 1)
}

func TestTimestamp_Formats(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1709287200123`), &ts))
	assert.Equal(t, time.UnixMilli(1709287200123).UTC(), ts.Time())

	require.NoError(t, json.Unmarshal([]byte(`1709287200`), &ts))
	assert.Equal(t, time.Unix(1709287200, 0).UTC(), ts.Time())

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T10:00:00+01:00"`), &ts))
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), ts.Time())

	require.NoError(t, json.Unmarshal([]byte(`"1709287200123"`), &ts))
	assert.Equal(t, time.UnixMilli(1709287200123).UTC(), ts.Time())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

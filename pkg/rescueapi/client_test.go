package rescueapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-console/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond})
}

func TestTeams_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rescue-ops/teams", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"teamId":"T1","teamName":"Alpha"},{"teamId":"T2"}, 5]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithToken("tok"))
	got, err := client.Teams(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2, "non-object entries are dropped")
	assert.Equal(t, "Alpha", got[0]["teamName"])
	assert.Equal(t, "T2", got[1]["teamId"])
}

func TestShelters_WrappedList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shelters", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"S1"}]}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Shelters(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "S1", got[0]["id"])
}

func TestVictimsAndMessages_Paths(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	v, err := client.Victims(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v)
	m, err := client.Messages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/victims", "/api/messages/"}, paths)
}

func TestAssignTeam_SendsCoordinate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rescue-ops/teams/T%201/assign", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]float64{"latitude": 11, "longitude": 21}, body)

		w.Write([]byte(`{"teamId":"T 1","assignedLatitude":11,"assignedLongitude":21}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).AssignTeam(context.Background(), "T 1", 11, 21)
	require.NoError(t, err)
	assert.Equal(t, float64(11), got["assignedLatitude"])
}

func TestAssignTeam_DetailNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"Team is disabled"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).AssignTeam(context.Background(), "T1", 1, 2)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "mutations are never retried")
	assert.Equal(t, "Team is disabled", Detail(err, ""))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, resilience.IsTransient(err))
}

func TestUnassignTeam(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rescue-ops/teams/T1/unassign", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":[{"msg":"team not assigned"}]}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).UnassignTeam(context.Background(), "T1")
	require.Error(t, err)
	assert.Equal(t, "team not assigned", Detail(err, "Failed to unassign team"))
	assert.False(t, resilience.IsTransient(err))
}

func TestSendAlert_Body(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/disaster_alert", r.URL.Path)
		var body struct {
			DisasterName string   `json:"disaster_name"`
			Numbers      []string `json:"numbers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Flood warning", body.DisasterName)
		assert.Equal(t, []string{"+911", "+912"}, body.Numbers)
		w.Write([]byte(`{"sent":2}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).SendAlert(context.Background(), "Flood warning", []string{"+911", "+912"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), got["sent"])
}

func TestRead_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":"V1"}]`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, fastRetry()).Victims(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).Shelters(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, GenericDetail, Detail(err, ""))
}

func TestBreaker_OpensOnRepeatedOutage(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := resilience.NewBreaker(resilience.BreakerConfig{Failures: 2, Reset: time.Hour})
	client := NewClient(srv.URL, WithBreaker(b), WithRetry(resilience.RetryPolicy{Attempts: 1}))

	for i := 0; i < 2; i++ {
		_, err := client.Teams(context.Background())
		require.Error(t, err)
	}
	_, err := client.Teams(context.Background())
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBoundaries_Query(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map/boundaries", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("zoom"))
		assert.JSONEq(t,
			`{"_southWest":{"lat":18.9,"lng":72.8},"_northEast":{"lat":19.3,"lng":73.0}}`,
			r.URL.Query().Get("bounds"))
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	raw, err := NewClient(srv.URL).Boundaries(context.Background(), 12,
		Bounds{South: 18.9, West: 72.8, North: 19.3, East: 73.0})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "FeatureCollection")
}

func TestStaticBoundaries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map/mumbai-map", r.URL.Path)
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	raw, err := NewClient(srv.URL).StaticBoundaries(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}

func TestDetail_Fallbacks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom", Detail(&APIError{StatusCode: 500, Detail: "boom"}, "x"))
	assert.Equal(t, "x", Detail(errors.New("network"), "x"))
	assert.Equal(t, GenericDetail, Detail(errors.New("network"), ""))
	assert.Equal(t, "from message", parseDetail([]byte(`{"message":"from message"}`)))
	assert.Empty(t, parseDetail([]byte(`<html>`)))
}

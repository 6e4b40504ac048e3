package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Analyze(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"damage_class": "crack",
			"severity": "high",
			"severity_score": 0.82,
			"health_score": 31,
			"risk_level": "Critical",
			"ai_suggestion": "close the lane",
			"inferred_infra_type": "bridge",
			"infra_type_mismatch": false
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, zap.NewNop())
	out, err := c.Analyze(context.Background(), Request{
		Image: "aGVsbG8=", InfraType: "roads", ZoneType: "main_road", Lat: 12.97, Lng: 77.59,
	})
	require.NoError(t, err)

	assert.Equal(t, "roads", got.InfraType)
	assert.Equal(t, "main_road", got.ZoneType)
	assert.InDelta(t, 77.59, got.Lng, 1e-9)

	assert.Equal(t, "Critical", out.RiskLevel)
	assert.Equal(t, "bridge", out.InfraType())
	assert.Equal(t, 31, out.HealthScore)
}

func TestClient_AnalyzeRejectsEmptyRisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"severity": "low"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, zap.NewNop()).Analyze(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_AnalyzeClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad image", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, zap.NewNop()).Analyze(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestClient_AnalyzeRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"risk_level": "Safe"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, 5*time.Second, zap.NewNop()).Analyze(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Safe", out.RiskLevel)
	assert.Equal(t, int32(2), calls.Load())
}

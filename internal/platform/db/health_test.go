package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	stats := &PoolStats{
		TotalConns:    5,
		IdleConns:     3,
		AcquiredConns: 2,
		MaxConns:      20,
		Healthy:       true,
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "healthy"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
}

func TestPoolStats_Unhealthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 0, Healthy: false}
	if stats.Healthy {
		t.Error("expected unhealthy with zero connections")
	}
}

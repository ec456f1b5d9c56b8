package main

import (
	"testing"
	"time"

	"github.com/ifuryst/autopost/internal/config"
)

func TestWorkerOptions(t *testing.T) {
	t.Run("parses durations", func(t *testing.T) {
		w, r, err := workerOptions(config.WorkerConfig{
			PollInterval:      "500ms",
			BatchSize:         5,
			ReconcileInterval: "1m",
			StaleAfter:        "15m",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.PollInterval != 500*time.Millisecond || w.BatchSize != 5 {
			t.Errorf("unexpected worker options %+v", w)
		}
		if r.Interval != time.Minute || r.StaleAfter != 15*time.Minute {
			t.Errorf("unexpected reconciler options %+v", r)
		}
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		_, _, err := workerOptions(config.WorkerConfig{PollInterval: "soon", ReconcileInterval: "1m", StaleAfter: "1m"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

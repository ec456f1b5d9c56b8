package models

import (
	"testing"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

func TestContent_Markdown(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{"title prepended", Content{Title: "Hello", Body: "World"}, "# Hello\n\nWorld"},
		{"existing heading kept", Content{Title: "Hello", Body: "# Other\n\nWorld"}, "# Other\n\nWorld"},
		{"no title", Content{Body: "  World  "}, "World"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.content.Markdown(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestContent_MergeResults(t *testing.T) {
	c := Content{PublishingResults: NewJSONColumn([]PlatformResult{
		{Platform: "medium", PublishResult: publisher.PublishResult{Success: true, URL: "https://m/1"}},
		{Platform: "LinkedIn", PublishResult: publisher.PublishResult{Error: "rate limited"}},
	})}

	if failed := c.FailedPlatforms(); !failed["linkedin"] || failed["medium"] {
		t.Fatalf("unexpected failed platforms %v", failed)
	}

	c.MergeResults(map[string]*publisher.PublishResult{
		"linkedin": {Success: true, URL: "https://l/1"},
		"devto":    publisher.Failure("No configuration found for platform: devto"),
	}, []string{"linkedin", "devto"})

	got := c.PublishingResults.Data
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].URL != "https://m/1" {
		t.Errorf("untouched platform changed: %+v", got[0])
	}
	if !got[1].Success || got[1].Platform != "linkedin" {
		t.Errorf("expected linkedin replaced in place, got %+v", got[1])
	}
	if got[2].Platform != "devto" || got[2].Success {
		t.Errorf("expected devto appended, got %+v", got[2])
	}
	if failed := c.FailedPlatforms(); len(failed) != 1 || !failed["devto"] {
		t.Errorf("unexpected failed platforms %v", failed)
	}
}

func TestOrchestration_Reconcile(t *testing.T) {
	newOrchestration := func(jobs map[string]*PublishingJob) *Orchestration {
		return &Orchestration{
			TotalPlatforms: 3,
			Status:         OrchestrationInProgress,
			Results: NewJSONColumn(map[string]*publisher.PublishResult{
				"devto": publisher.Failure("No configuration found for platform: devto"),
			}),
			Jobs: jobs,
		}
	}

	t.Run("in progress while jobs are open", func(t *testing.T) {
		o := newOrchestration(map[string]*PublishingJob{
			"medium":   {Status: JobStatusQueued},
			"linkedin": {Status: JobStatusCompleted, Result: NewJSONColumn(&publisher.PublishResult{Success: true})},
		})
		o.Reconcile()
		if o.Status != OrchestrationInProgress || o.SuccessfulPlatforms != 1 || o.FailedPlatforms != 1 {
			t.Errorf("unexpected %+v", o)
		}
	})

	t.Run("partial when all done with mixed results", func(t *testing.T) {
		o := newOrchestration(map[string]*PublishingJob{
			"medium":   {Status: JobStatusFailed, LastError: "boom"},
			"linkedin": {Status: JobStatusCompleted, Result: NewJSONColumn(&publisher.PublishResult{Success: true})},
		})
		o.Reconcile()
		if o.Status != OrchestrationPartial {
			t.Errorf("expected partial, got %s", o.Status)
		}
		if o.Results.Data["medium"].Error != "boom" {
			t.Errorf("expected last error as result, got %+v", o.Results.Data["medium"])
		}
		if o.SuccessfulPlatforms+o.FailedPlatforms > o.TotalPlatforms {
			t.Error("counts exceed total")
		}
	})

	t.Run("completed when everything succeeded", func(t *testing.T) {
		o := &Orchestration{TotalPlatforms: 1, Jobs: map[string]*PublishingJob{
			"medium": {Status: JobStatusCompleted, Result: NewJSONColumn(&publisher.PublishResult{Success: true})},
		}}
		o.Reconcile()
		if o.Status != OrchestrationCompleted {
			t.Errorf("expected completed, got %s", o.Status)
		}
	})

	t.Run("failed when nothing succeeded", func(t *testing.T) {
		o := newOrchestration(nil)
		o.Reconcile()
		if o.Status != OrchestrationFailed {
			t.Errorf("expected failed, got %s", o.Status)
		}
	})

	t.Run("cancelled stays cancelled", func(t *testing.T) {
		o := newOrchestration(map[string]*PublishingJob{"medium": {Status: JobStatusCancelled}})
		o.Status = OrchestrationCancelled
		o.Reconcile()
		if o.Status != OrchestrationCancelled {
			t.Errorf("expected cancelled, got %s", o.Status)
		}
	})
}

func TestPublishingJob_CanRetry(t *testing.T) {
	tests := []struct {
		job  PublishingJob
		want bool
	}{
		{PublishingJob{Status: JobStatusFailed, Attempts: 0, MaxAttempts: 3}, true},
		{PublishingJob{Status: JobStatusFailed, Attempts: 3, MaxAttempts: 3}, false},
		{PublishingJob{Status: JobStatusCompleted, MaxAttempts: 3}, false},
		{PublishingJob{Status: JobStatusCancelled, MaxAttempts: 3}, false},
	}
	for _, tt := range tests {
		if got := tt.job.CanRetry(); got != tt.want {
			t.Errorf("%s with %d/%d attempts: expected %v, got %v",
				tt.job.Status, tt.job.Attempts, tt.job.MaxAttempts, tt.want, got)
		}
	}
}

func TestJSONColumn_Scan(t *testing.T) {
	var c JSONColumn[map[string]string]

	if err := c.Scan([]byte(`{"a":"b"}`)); err != nil || c.Data["a"] != "b" {
		t.Fatalf("scan bytes: %v %v", c.Data, err)
	}
	if err := c.Scan(nil); err != nil || c.Data != nil {
		t.Fatalf("scan nil: %v %v", c.Data, err)
	}
	if err := c.Scan(""); err != nil || c.Data != nil {
		t.Fatalf("scan empty: %v %v", c.Data, err)
	}
	if err := c.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}

	v, err := NewJSONColumn(map[string]string{"x": "y"}).Value()
	if err != nil || v != `{"x":"y"}` {
		t.Errorf("unexpected value %v, %v", v, err)
	}
}

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

const (
	ContentDraft              = "draft"
	ContentPublished          = "published"
	ContentPartiallyPublished = "partially_published"
	ContentPublishFailed      = "publish_failed"
)

// PlatformResult is the latest recorded publish outcome for one platform.
type PlatformResult struct {
	Platform string `json:"platform"`
	publisher.PublishResult
}

// Content is a blog draft ready for distribution
type Content struct {
	ID                string                       `gorm:"primaryKey;size:191" json:"id"`
	Title             string                       `gorm:"size:500" json:"title"`
	Body              string                       `gorm:"type:text" json:"body"`
	ImageURL          string                       `gorm:"size:2048" json:"imageUrl,omitempty"`
	Status            string                       `gorm:"size:50;default:'draft'" json:"status"`
	PublishingResults JSONColumn[[]PlatformResult] `gorm:"type:text" json:"publishingResults"`
	CreatedAt         time.Time                    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time                    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Markdown returns the text handed to publishing agents. A stored title is
// rendered as a leading heading unless the body already starts with one.
func (c *Content) Markdown() string {
	body := strings.TrimSpace(c.Body)
	if c.Title == "" || strings.HasPrefix(body, "# ") {
		return body
	}
	return fmt.Sprintf("# %s\n\n%s", c.Title, body)
}

// FailedPlatforms returns the platforms whose recorded result is a failure.
func (c *Content) FailedPlatforms() map[string]bool {
	failed := make(map[string]bool)
	for _, r := range c.PublishingResults.Data {
		failed[strings.ToLower(r.Platform)] = !r.Success
	}
	for platform, isFailed := range failed {
		if !isFailed {
			delete(failed, platform)
		}
	}
	return failed
}

// MergeResults overwrites existing entries by platform name and appends new ones.
func (c *Content) MergeResults(results map[string]*publisher.PublishResult, order []string) {
	merged := append([]PlatformResult(nil), c.PublishingResults.Data...)
	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[strings.ToLower(r.Platform)] = i
	}

	for _, platform := range order {
		result, ok := results[platform]
		if !ok || result == nil {
			continue
		}
		entry := PlatformResult{Platform: platform, PublishResult: *result}
		if i, exists := index[strings.ToLower(platform)]; exists {
			merged[i] = entry
			continue
		}
		index[strings.ToLower(platform)] = len(merged)
		merged = append(merged, entry)
	}

	c.PublishingResults = NewJSONColumn(merged)
}

package service

import "context"

// JobCounter reports job totals grouped by platform and status.
type JobCounter interface {
	CountJobs(ctx context.Context) ([]JobCount, error)
}

// JobStats summarizes job counts for the stats endpoint.
type JobStats struct {
	Total      int64                       `json:"total"`
	ByStatus   map[string]int64            `json:"byStatus"`
	ByPlatform map[string]map[string]int64 `json:"byPlatform"`
}

// SummarizeJobs folds grouped counts into totals per status and platform.
func SummarizeJobs(counts []JobCount) *JobStats {
	stats := &JobStats{
		ByStatus:   map[string]int64{},
		ByPlatform: map[string]map[string]int64{},
	}
	for _, c := range counts {
		stats.Total += c.Count
		stats.ByStatus[c.Status] += c.Count
		if stats.ByPlatform[c.Platform] == nil {
			stats.ByPlatform[c.Platform] = map[string]int64{}
		}
		stats.ByPlatform[c.Platform][c.Status] += c.Count
	}
	return stats
}

package medium

import (
	"fmt"
	"strings"

	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/pkg/util"
)

const (
	defaultTitle   = "Untitled Post"
	maxTitleLength = 100
	maxTags        = 5
	// Medium rejects tags longer than this
	maxTagLength = 25
)

// Transform builds the long-form markdown payload. The image, when present,
// leads the body as a markdown image.
func Transform(content, imageURL string) (*publisher.FormattedContent, error) {
	sanitized := publisher.SanitizeContent(content)
	if strings.TrimSpace(sanitized) == "" {
		return nil, fmt.Errorf("content is empty")
	}

	title, body := publisher.SplitTitleBody(sanitized, defaultTitle)
	title = util.Truncate(title, maxTitleLength)

	if imageURL != "" {
		body = fmt.Sprintf("![%s](%s)\n\n%s", title, imageURL, body)
	}

	var tags []string
	for _, tag := range publisher.ExtractTags(sanitized) {
		if len(tags) == maxTags {
			break
		}
		tags = append(tags, util.Truncate(tag, maxTagLength))
	}

	return &publisher.FormattedContent{
		Title:    title,
		Body:     body,
		Tags:     tags,
		ImageURL: imageURL,
		Metadata: map[string]string{
			"content_format": "markdown",
		},
	}, nil
}

package linkedin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/pkg/util"
)

const (
	defaultTitle      = "New Post"
	maxTitleLength    = 200
	maxTags           = 3
	maxCommentaryText = 3000
)

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*$`)

// Transform builds a social post: markdown headings become bold runs and the
// title leads the commentary.
func Transform(content, imageURL string) (*publisher.FormattedContent, error) {
	sanitized := publisher.SanitizeContent(content)
	if strings.TrimSpace(sanitized) == "" {
		return nil, fmt.Errorf("content is empty")
	}

	title, body := publisher.SplitTitleBody(sanitized, defaultTitle)
	title = util.Truncate(title, maxTitleLength)
	body = headingPattern.ReplaceAllString(body, "**$1**")

	text := fmt.Sprintf("**%s**\n\n%s", title, body)

	tags := publisher.ExtractTags(sanitized)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}

	return &publisher.FormattedContent{
		Title:    title,
		Body:     util.Truncate(text, maxCommentaryText),
		Tags:     tags,
		ImageURL: imageURL,
		Metadata: map[string]string{
			"visibility": "PUBLIC",
		},
	}, nil
}

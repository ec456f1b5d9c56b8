package publisher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	iframeBlockPattern = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe\s*>`)
	tagPattern         = regexp.MustCompile(`#(\w+)`)
)

const titleScanLines = 3

// RequireCredentials fails on the first field that is missing or empty.
func RequireCredentials(credentials map[string]string, fields ...string) error {
	for _, field := range fields {
		if credentials[field] == "" {
			return fmt.Errorf("missing required credential: %s", field)
		}
	}
	return nil
}

// SanitizeContent strips <script> and <iframe> blocks. Other markup is kept as is.
func SanitizeContent(content string) string {
	content = scriptBlockPattern.ReplaceAllString(content, "")
	return iframeBlockPattern.ReplaceAllString(content, "")
}

// ExtractTags returns the words of #word tokens in first-seen order without duplicates.
func ExtractTags(content string) []string {
	matches := tagPattern.FindAllStringSubmatch(content, -1)
	tags := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// SplitTitleBody picks a title from the first lines of content.
//
// A "# " heading within the first three lines wins and everything after it
// becomes the body. Otherwise the first of those lines that is 11 to 99
// characters long and has no period is used. When nothing qualifies the
// default title is returned with the whole content as body.
func SplitTitleBody(content, defaultTitle string) (string, string) {
	lines := strings.Split(content, "\n")
	limit := titleScanLines
	if len(lines) < limit {
		limit = len(lines)
	}

	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:]), strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
		n := utf8.RuneCountInString(line)
		if n > 10 && n < 100 && !strings.Contains(line, ".") {
			return line, strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}

	return defaultTitle, strings.TrimSpace(content)
}

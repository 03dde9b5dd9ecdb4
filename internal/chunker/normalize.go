package chunker

import (
	"regexp"
	"strings"
)

// Normalization patterns applied before chunking. These mirror the cleanup
// the site build applies to markdown: front-matter and HTML comments carry
// no retrievable prose, and code fence language tags only affect syntax
// highlighting.
var (
	frontMatterPattern = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
	codeFencePattern   = regexp.MustCompile("```(\\w+)\n")
)

// Normalize strips front-matter blocks, HTML comments, and code-fence
// language tags (keeping the code body), and collapses runs of three or
// more blank lines to two. It must run before Split so the chunker only
// ever sees normalized prose and code.
func Normalize(content string) string {
	content = frontMatterPattern.ReplaceAllString(content, "")
	content = htmlCommentPattern.ReplaceAllString(content, "")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")
	content = codeFencePattern.ReplaceAllString(content, "```\n")
	return strings.TrimSpace(content)
}

package ingestion

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robolearn/coursechat/internal/chunker"
)

// weekPattern extracts the course-week grouping key from a file path, e.g.
// docs/weeks/week-01-02-foundations/intro.md -> "week-01-02".
var weekPattern = regexp.MustCompile(`week-(\d{2}-\d{2})`)

// frontMatterBlock captures the leading YAML front-matter of a markdown
// document.
var frontMatterBlock = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n`)

// frontMatter is the subset of Docusaurus front-matter fields the pipeline
// cares about. Unknown keys are ignored.
type frontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// extractFrontMatter parses the YAML front-matter block at the start of
// content. A missing or malformed block yields the zero value — metadata
// then falls back to path-derived values.
func extractFrontMatter(content string) frontMatter {
	m := frontMatterBlock.FindStringSubmatch(content)
	if m == nil {
		return frontMatter{}
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return frontMatter{}
	}
	return fm
}

// documentMetadata derives the chunk metadata for one markdown file.
// relPath is the file's path relative to the docs root.
func documentMetadata(relPath, content string) chunker.Metadata {
	fm := extractFrontMatter(content)

	title := fm.Title
	if title == "" {
		base := filepath.Base(relPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return chunker.Metadata{
		Title:      title,
		SourceFile: filepath.Base(relPath),
		Week:       weekOf(relPath),
		URL:        docURL(relPath),
		Type:       "course_content",
	}
}

// weekOf extracts the grouping key from the path, or "unknown".
func weekOf(relPath string) string {
	if m := weekPattern.FindString(relPath); m != "" {
		return m
	}
	return "unknown"
}

// docURL converts a relative docs path into the canonical site URL:
// weeks/week-01-02-foundations/intro.md -> /docs/weeks/week-01-02-foundations/intro
func docURL(relPath string) string {
	p := filepath.ToSlash(relPath)
	p = strings.TrimSuffix(p, ".mdx")
	p = strings.TrimSuffix(p, ".md")
	return path.Join("/docs", p)
}

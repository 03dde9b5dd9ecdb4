package ingestion

import "testing"

func TestDocumentMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		relPath string
		content string
		want    struct {
			title, week, url string
		}
	}{
		{
			name:    "front matter title wins",
			relPath: "weeks/week-01-02-foundations/intro.md",
			content: "---\ntitle: Foundations of Robotics\ndescription: overview\n---\n\n# Intro\n",
			want: struct{ title, week, url string }{
				title: "Foundations of Robotics",
				week:  "week-01-02",
				url:   "/docs/weeks/week-01-02-foundations/intro",
			},
		},
		{
			name:    "no front matter falls back to file stem",
			relPath: "weeks/week-03-04-control/pid-control.mdx",
			content: "# PID Control\n\nBody.\n",
			want: struct{ title, week, url string }{
				title: "pid-control",
				week:  "week-03-04",
				url:   "/docs/weeks/week-03-04-control/pid-control",
			},
		},
		{
			name:    "path without week marker",
			relPath: "syllabus.md",
			content: "Course syllabus.\n",
			want: struct{ title, week, url string }{
				title: "syllabus",
				week:  "unknown",
				url:   "/docs/syllabus",
			},
		},
		{
			name:    "malformed front matter ignored",
			relPath: "weeks/week-05-06-perception/notes.md",
			content: "---\ntitle: [unclosed\n---\n\nBody.\n",
			want: struct{ title, week, url string }{
				title: "notes",
				week:  "week-05-06",
				url:   "/docs/weeks/week-05-06-perception/notes",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := documentMetadata(tt.relPath, tt.content)
			if got.Title != tt.want.title {
				t.Errorf("Title = %q, want %q", got.Title, tt.want.title)
			}
			if got.Week != tt.want.week {
				t.Errorf("Week = %q, want %q", got.Week, tt.want.week)
			}
			if got.URL != tt.want.url {
				t.Errorf("URL = %q, want %q", got.URL, tt.want.url)
			}
			if got.Type != "course_content" {
				t.Errorf("Type = %q, want course_content", got.Type)
			}
		})
	}
}

func TestExtractFrontMatter_OnlyAtStart(t *testing.T) {
	t.Parallel()

	content := "# Heading first\n\n---\ntitle: Not Front Matter\n---\n"
	fm := extractFrontMatter(content)
	if fm.Title != "" {
		t.Errorf("mid-document block must not parse as front matter, got title %q", fm.Title)
	}
}

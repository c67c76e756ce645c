package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"index.md", true},
		{"docs/guide.markdown", true},
		{"blog/post.mdx", true},
		{"README.MD", true},
		{"logo.png", false},
		{"styles.css", false},
		{"Makefile", false},
		{"archive.md.gz", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPage(tt.path), "path %q", tt.path)
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "md", Extension("docs/index.md"))
	assert.Equal(t, "png", Extension("logo.PNG"))
	assert.Equal(t, "", Extension("Makefile"))
}

func TestAppPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"index.md", RootAppPath},
		{"about.md", "/about"},
		{"docs/guide.md", "/docs/guide"},
		{"docs/index.md", "/docs"},
		{"blog/2024/hello.mdx", "/blog/2024/hello"},
		{"logo.png", ""},
		{"assets/app.js", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AppPath(tt.path), "path %q", tt.path)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Metadata
		wantErr string
	}{
		{
			name:    "front matter title wins over heading",
			content: "---\ntitle: From Front Matter\n---\n# From Heading\n\nbody\n",
			want:    Metadata{Title: "From Front Matter"},
		},
		{
			name:    "heading fallback when no front matter",
			content: "# Hello World\n\nSome text.\n",
			want:    Metadata{Title: "Hello World"},
		},
		{
			name:    "full front matter",
			content: "---\ntitle: Guide\ndescription: A guide\ndraft: true\ntags:\n  - go\n  - sync\n---\n# ignored\n",
			want: Metadata{
				Title:       "Guide",
				Description: "A guide",
				Draft:       true,
				Tags:        []string{"go", "sync"},
			},
		},
		{
			name:    "unknown front matter keys land in extra",
			content: "---\ntitle: T\nlayout: wide\n---\nbody\n",
			want: Metadata{
				Title: "T",
				Extra: map[string]any{"layout": "wide"},
			},
		},
		{
			name:    "no title anywhere",
			content: "just a paragraph\n",
			want:    Metadata{},
		},
		{
			name:    "thematic break is not front matter",
			content: "--- not a fence\n\n# Title\n",
			want:    Metadata{Title: "Title"},
		},
		{
			name:    "malformed front matter yaml",
			content: "---\ntitle: [unclosed\n---\nbody\n",
			wantErr: "invalid front matter",
		},
		{
			name:    "unterminated front matter",
			content: "---\ntitle: T\nno closing fence\n",
			wantErr: "unterminated front matter",
		},
		{
			name:    "byte order mark before the fence",
			content: "\xEF\xBB\xBF---\ntitle: T\n---\nbody\n",
			want:    Metadata{Title: "T"},
		},
		{
			name:    "binary content rejected",
			content: "\xff\xfe\x00\x01",
			wantErr: "not valid UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse([]byte(tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseCRLF(t *testing.T) {
	t.Parallel()

	got, err := Parse([]byte("---\r\ntitle: Windows\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Windows", got.Title)
}

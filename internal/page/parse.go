package page

import (
	"bytes"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Metadata is the parsed front matter and derived fields of a page.
// It is the tagged payload attached to page items; raw assets carry none.
type Metadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Draft       bool           `json:"draft,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// frontMatter is the YAML document delimited by "---" fences at the top of
// a page. Unknown keys are collected into Extra rather than rejected.
type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Draft       bool     `yaml:"draft"`
	Tags        []string `yaml:"tags"`
}

var frontMatterFence = []byte("---")

// The parser configuration never changes and goldmark parsers are safe to
// share; per-call state lives in the text.Reader.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func markdownParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return parserInstance
}

// Parse extracts metadata from page content. The title comes from front
// matter when present, otherwise from the first level-1 heading. Content
// that is not valid UTF-8 or carries malformed front matter is a parse
// error; the caller records it on the item rather than aborting the run.
func Parse(content []byte) (*Metadata, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("page content is not valid UTF-8")
	}

	meta := &Metadata{}

	body, fm, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}
	if fm != nil {
		var parsed frontMatter
		if err := yaml.Unmarshal(fm, &parsed); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
		var extra map[string]any
		if err := yaml.Unmarshal(fm, &extra); err == nil {
			delete(extra, "title")
			delete(extra, "description")
			delete(extra, "draft")
			delete(extra, "tags")
			if len(extra) > 0 {
				meta.Extra = extra
			}
		}
		meta.Title = parsed.Title
		meta.Description = parsed.Description
		meta.Draft = parsed.Draft
		meta.Tags = parsed.Tags
	}

	if meta.Title == "" {
		meta.Title = firstHeading(body)
	}

	return meta, nil
}

// splitFrontMatter separates a leading YAML front matter block from the
// markdown body. Returns (body, frontMatter, error); frontMatter is nil
// when the document has none. An opening fence without a closing fence is
// malformed.
func splitFrontMatter(content []byte) ([]byte, []byte, error) {
	trimmed := bytes.TrimLeft(content, "\xEF\xBB\xBF")
	if !bytes.HasPrefix(trimmed, frontMatterFence) {
		return content, nil, nil
	}

	rest := trimmed[len(frontMatterFence):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	if len(rest) == 0 || rest[0] != '\n' {
		// "---" followed by content on the same line is a thematic
		// break or plain text, not a front matter fence.
		return content, nil, nil
	}
	rest = rest[1:]

	for _, close := range [][]byte{[]byte("\n---\n"), []byte("\n---\r\n")} {
		if idx := bytes.Index(rest, close); idx >= 0 {
			return rest[idx+len(close):], rest[:idx], nil
		}
	}
	if bytes.HasSuffix(rest, []byte("\n---")) {
		return nil, rest[:len(rest)-len("\n---")], nil
	}

	return nil, nil, fmt.Errorf("unterminated front matter block")
}

// firstHeading returns the text of the first level-1 ATX heading in the
// markdown body, or empty when there is none.
func firstHeading(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	doc := markdownParser().Parser().Parse(text.NewReader(body))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
			if textNode, ok := child.(*ast.Text); ok {
				buf.Write(textNode.Segment.Value(body))
			}
		}
		title = buf.String()
		return ast.WalkStop, nil
	})

	return title
}

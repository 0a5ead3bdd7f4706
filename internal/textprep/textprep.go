// Package textprep turns markdown replies into plain text a voice can read.
package textprep

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	spaceBefore = regexp.MustCompile(`\s+([,.!?;:।])`)
)

// Options controls which markdown elements are spoken.
type Options struct {
	// IncludeCode speaks fenced and indented code blocks line by line.
	// Inline code is always spoken.
	IncludeCode bool
}

// Processor converts markdown to speakable text.
type Processor struct {
	md   goldmark.Markdown
	opts Options
}

// New creates a processor. Bare URLs are recognized as links and dropped.
func New(opts Options) *Processor {
	return &Processor{
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		opts: opts,
	}
}

var defaultProcessor = New(Options{})

// Speakable converts markdown with the default options.
func Speakable(markdown string) string {
	return defaultProcessor.Speakable(markdown)
}

// Speakable returns the readable text of markdown. Each block becomes a
// sentence; blocks without closing punctuation get a full stop so the
// voice pauses between them. Link text is kept and link targets dropped.
func (p *Processor) Speakable(markdown string) string {
	source := []byte(markdown)
	doc := p.md.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if p.opts.IncludeCode {
				blocks = append(blocks, codeLines(n, source)...)
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}

		if n.Type() == ast.TypeBlock && n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline {
			var b strings.Builder
			inlineText(&b, n, source)
			if s := clean(b.String()); s != "" {
				blocks = append(blocks, terminate(s))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, " ")
}

// inlineText writes the text of n's inline children.
func inlineText(b *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink, *ast.RawHTML:
			// URLs and markup are not read aloud
		default:
			inlineText(b, c, source)
		}
	}
}

func codeLines(n ast.Node, source []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if s := clean(string(seg.Value(source))); s != "" {
			out = append(out, terminate(s))
		}
	}
	return out
}

func clean(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	s = spaceBefore.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// terminate appends a full stop unless s already ends a sentence.
func terminate(s string) string {
	last := []rune(s)[len([]rune(s))-1]
	switch last {
	case '.', '!', '?', '।', '…', ':', ';':
		return s
	}
	if unicode.IsPunct(last) && last != ')' && last != '"' && last != '\'' {
		return s
	}
	return s + "."
}

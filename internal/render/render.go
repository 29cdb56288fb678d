// Package render turns Markdown into HTML with interactive task checkboxes.
// Each checkbox carries the source line it was parsed from.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type Options struct {
	CacheSize int
	Style     string
}

type Output struct {
	HTML    string
	LineMap []int
}

type Renderer struct {
	md    goldmark.Markdown
	style *chroma.Style
	cache *lru.Cache[string, Output]
}

var lineMapKey = parser.NewContextKey()

func New(opts Options) (*Renderer, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	style := styles.Get(opts.Style)
	if style == nil {
		style = styles.Fallback
	}
	cache, err := lru.New[string, Output](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	r := &Renderer{style: style, cache: cache}
	r.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(lineTagger{}, 100)),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(&nodeRenderer{style: style}, 100)),
		),
	)
	return r, nil
}

// Render returns HTML and, for each checkbox in render order, its source
// line. Results are cached by content.
func (r *Renderer) Render(src string) (string, []int, error) {
	out, err := r.RenderOutput(src)
	if err != nil {
		return "", nil, err
	}
	return out.HTML, out.LineMap, nil
}

func (r *Renderer) RenderOutput(src string) (Output, error) {
	sum := sha256.Sum256([]byte(src))
	key := hex.EncodeToString(sum[:])
	if out, ok := r.cache.Get(key); ok {
		return Output{HTML: out.HTML, LineMap: append([]int(nil), out.LineMap...)}, nil
	}

	source := []byte(src)
	pc := parser.NewContext()
	doc := r.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return Output{}, err
	}
	lineMap, _ := pc.Get(lineMapKey).([]int)
	if lineMap == nil {
		lineMap = []int{}
	}
	out := Output{HTML: buf.String(), LineMap: lineMap}
	r.cache.Add(key, out)
	return Output{HTML: out.HTML, LineMap: append([]int(nil), lineMap...)}, nil
}

// WriteCSS writes the stylesheet for highlighted code blocks.
func (r *Renderer) WriteCSS(w io.Writer) error {
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, r.style)
}

// lineTagger stamps every task checkbox with the zero-based source line of
// its list item and records the lines in document order.
type lineTagger struct{}

func (lineTagger) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	var starts []int
	lineMap := []int{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != extast.KindTaskCheckBox {
			return ast.WalkContinue, nil
		}
		parent := n.Parent()
		if parent == nil || parent.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		if starts == nil {
			starts = lineStarts(source)
		}
		line := sort.SearchInts(starts, parent.Lines().At(0).Start+1) - 1
		n.SetAttributeString("data-line", []byte(strconv.Itoa(line)))
		lineMap = append(lineMap, line)
		return ast.WalkContinue, nil
	})
	pc.Set(lineMapKey, lineMap)
}

func lineStarts(source []byte) []int {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

type nodeRenderer struct {
	style *chroma.Style
}

func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(extast.KindTaskCheckBox, r.renderTaskCheckBox)
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *nodeRenderer) renderTaskCheckBox(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*extast.TaskCheckBox)
	_, _ = w.WriteString(`<input type="checkbox" class="task"`)
	if v, ok := n.AttributeString("data-line"); ok {
		if b, ok := v.([]byte); ok {
			_, _ = w.WriteString(` data-line="`)
			_, _ = w.Write(b)
			_ = w.WriteByte('"')
		}
	}
	if n.IsChecked {
		_, _ = w.WriteString(` checked`)
	}
	_, _ = w.WriteString(`> `)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}
	lang := string(n.Language(source))

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err == nil {
		var out bytes.Buffer
		formatter := chromahtml.New(chromahtml.WithClasses(true))
		if err = formatter.Format(&out, r.style, iterator); err == nil {
			_, _ = w.Write(out.Bytes())
			return ast.WalkSkipChildren, nil
		}
	}
	_, _ = w.WriteString("<pre><code>")
	_, _ = w.Write(util.EscapeHTML(code.Bytes()))
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

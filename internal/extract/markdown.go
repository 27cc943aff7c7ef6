package extract

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// whitespaceRun matches runs of HTML whitespace in text nodes.
	whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)

	// markdownSpecial matches characters that would start emphasis or a
	// code span when they appear in plain text.
	markdownSpecial = regexp.MustCompile("([*_`])")
)

// skippedTags never contribute text to the output.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"title":    true,
	"svg":      true,
	"iframe":   true,
}

// inlineTags are rendered into the surrounding paragraph.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"cite": true, "code": true, "data": true, "del": true, "dfn": true,
	"em": true, "i": true, "img": true, "ins": true, "kbd": true,
	"label": true, "mark": true, "q": true, "s": true, "samp": true,
	"small": true, "span": true, "strike": true, "strong": true, "sub": true,
	"sup": true, "time": true, "u": true, "var": true, "wbr": true,
}

// ToMarkdown converts an HTML fragment to Markdown.
//
// Headings become ATX headings, lists keep their nesting with four space
// indentation, <pre> blocks become fenced code blocks with the language
// taken from a "language-*" or "lang-*" class, and tables become pipe
// tables with the first row as header. The result is trimmed.
func ToMarkdown(fragment string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	return convertNodes(nodes)
}

func convertNodes(nodes []*html.Node) (string, error) {
	c := newConverter()
	for _, n := range nodes {
		c.block(n)
	}
	c.flush()

	if err := c.md.Error(); err != nil {
		return "", fmt.Errorf("build markdown: %w", err)
	}
	out := strings.ReplaceAll(c.md.String(), "\r\n", "\n")
	return strings.TrimSpace(out), nil
}

// converter walks a DOM and emits block elements into a Markdown builder.
// Inline content accumulates in pending until a block boundary flushes it
// as a paragraph.
type converter struct {
	md        *markdown.Markdown
	pending   strings.Builder
	lastBlank bool
}

func newConverter() *converter {
	return &converter{
		md:        markdown.NewMarkdown(io.Discard),
		lastBlank: true,
	}
}

// blank separates two blocks with one empty line.
func (c *converter) blank() {
	if !c.lastBlank {
		c.md.PlainText("")
		c.lastBlank = true
	}
}

func (c *converter) emitted() {
	c.lastBlank = false
}

// flush writes buffered inline content as a paragraph.
func (c *converter) flush() {
	text := c.pending.String()
	c.pending.Reset()
	c.paragraph(text)
}

func (c *converter) paragraph(text string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = strings.TrimLeft(lines[i], " ")
	}
	text = strings.Join(lines, "\n")
	if text == "" {
		return
	}
	c.blank()
	c.md.PlainText(text)
	c.emitted()
	c.blank()
}

func (c *converter) block(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.pending.WriteString(inlineText(n))
		return
	case html.ElementNode:
	default:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.block(child)
		}
		return
	}

	tag := n.Data
	switch {
	case skippedTags[tag]:
	case inlineTags[tag]:
		c.pending.WriteString(inline(n))
	case tag == "h1", tag == "h2", tag == "h3", tag == "h4", tag == "h5", tag == "h6":
		c.flush()
		c.heading(n)
	case tag == "p":
		c.flush()
		c.paragraph(inlineChildren(n))
	case tag == "ul", tag == "ol":
		c.flush()
		c.blank()
		c.list(n, 0)
		c.blank()
	case tag == "pre":
		c.flush()
		c.codeBlock(n)
	case tag == "blockquote":
		c.flush()
		c.blockquote(n)
	case tag == "table":
		c.flush()
		c.table(n)
	case tag == "hr":
		c.flush()
		c.blank()
		c.md.HorizontalRule()
		c.emitted()
		c.blank()
	default:
		c.flush()
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.block(child)
		}
		c.flush()
	}
}

func (c *converter) heading(n *html.Node) {
	text := strings.Join(strings.Fields(inlineChildren(n)), " ")
	if text == "" {
		return
	}
	level, err := strconv.Atoi(n.Data[1:])
	if err != nil {
		level = 1
	}
	emit := []func(string) *markdown.Markdown{
		c.md.H1, c.md.H2, c.md.H3, c.md.H4, c.md.H5, c.md.H6,
	}[level-1]

	c.blank()
	emit(text)
	c.emitted()
	c.blank()
}

// list writes one list level. Flat lists with default numbering go through
// the builder's list helpers; nested or renumbered lists are written line
// by line.
func (c *converter) list(n *html.Node, depth int) {
	ordered := n.Data == "ol"
	start := 1
	if ordered {
		if v, err := strconv.Atoi(getAttr(n, "start")); err == nil {
			start = v
		}
	}

	items := make([]*html.Node, 0)
	nested := false
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		items = append(items, li)
		if hasChildList(li) {
			nested = true
		}
	}

	if depth == 0 && !nested && start == 1 {
		texts := make([]string, 0, len(items))
		for _, li := range items {
			texts = append(texts, itemText(li))
		}
		if ordered {
			c.md.OrderedList(texts...)
		} else {
			c.md.BulletList(texts...)
		}
		c.emitted()
		return
	}

	indent := strings.Repeat("    ", depth)
	for i, li := range items {
		marker := "-"
		if ordered {
			marker = strconv.Itoa(start+i) + "."
		}
		c.md.PlainText(indent + marker + " " + itemText(li))
		c.emitted()
		for child := li.FirstChild; child != nil; child = child.NextSibling {
			if isList(child) {
				c.list(child, depth+1)
			}
		}
	}
}

func (c *converter) codeBlock(n *html.Node) {
	lang := codeLanguage(n)
	if lang == "" {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == "code" {
				lang = codeLanguage(child)
				break
			}
		}
	}
	text := strings.TrimRight(textContent(n), "\n")

	c.blank()
	c.md.CodeBlocks(markdown.SyntaxHighlight(lang), text)
	c.emitted()
	c.blank()
}

func (c *converter) blockquote(n *html.Node) {
	children := make([]*html.Node, 0)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	inner, err := convertNodes(children)
	if err != nil || inner == "" {
		return
	}

	c.blank()
	for _, line := range strings.Split(inner, "\n") {
		c.md.Blockquote(line)
	}
	c.emitted()
	c.blank()
}

func (c *converter) table(n *html.Node) {
	rows := make([][]string, 0)
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch child.Data {
			case "thead", "tbody", "tfoot":
				collect(child)
			case "tr":
				rows = append(rows, tableRow(child))
			}
		}
	}
	collect(n)
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}

	c.blank()
	c.md.Table(markdown.TableSet{Header: rows[0], Rows: rows[1:]})
	// The table already ends with a line feed.
	c.lastBlank = true
}

func tableRow(tr *html.Node) []string {
	cells := make([]string, 0)
	for cell := tr.FirstChild; cell != nil; cell = cell.NextSibling {
		if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
			continue
		}
		text := strings.Join(strings.Fields(inlineChildren(cell)), " ")
		cells = append(cells, strings.ReplaceAll(text, "|", `\|`))
	}
	return cells
}

// itemText is the inline text of a list item without its nested lists.
func itemText(li *html.Node) string {
	var b strings.Builder
	for child := li.FirstChild; child != nil; child = child.NextSibling {
		if isList(child) {
			continue
		}
		b.WriteString(inline(child))
		b.WriteString(" ")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func inline(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return inlineText(n)
	case html.ElementNode:
	default:
		return ""
	}

	switch n.Data {
	case "br":
		return "  \n"
	case "img":
		src := getAttr(n, "src")
		if src == "" {
			return ""
		}
		return markdown.Image(getAttr(n, "alt"), src)
	case "a":
		text := strings.TrimSpace(inlineChildren(n))
		href := strings.TrimSpace(getAttr(n, "href"))
		if text == "" || href == "" {
			return text
		}
		return markdown.Link(text, href)
	case "strong", "b":
		return wrap(inlineChildren(n), markdown.Bold)
	case "em", "i":
		return wrap(inlineChildren(n), markdown.Italic)
	case "del", "s", "strike":
		return wrap(inlineChildren(n), markdown.Strikethrough)
	case "code", "kbd", "samp":
		return codeSpan(textContent(n))
	}

	if skippedTags[n.Data] {
		return ""
	}
	if inlineTags[n.Data] {
		return inlineChildren(n)
	}
	// Block content inside an inline context is separated by spaces.
	return " " + inlineChildren(n) + " "
}

func inlineChildren(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(inline(child))
	}
	return b.String()
}

func inlineText(n *html.Node) string {
	text := whitespaceRun.ReplaceAllString(n.Data, " ")
	return markdownSpecial.ReplaceAllString(text, `\$1`)
}

// wrap applies an emphasis marker to the trimmed text and keeps the
// surrounding spaces outside the markers.
func wrap(text string, mark func(string) string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	var b strings.Builder
	if strings.HasPrefix(text, " ") {
		b.WriteString(" ")
	}
	b.WriteString(mark(trimmed))
	if strings.HasSuffix(text, " ") {
		b.WriteString(" ")
	}
	return b.String()
}

func codeSpan(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if strings.Contains(text, "`") {
		return "`` " + text + " ``"
	}
	return markdown.Code(text)
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textContent(child))
	}
	return b.String()
}

func codeLanguage(n *html.Node) string {
	for _, class := range strings.Fields(getAttr(n, "class")) {
		for _, prefix := range []string{"language-", "lang-"} {
			if lang, ok := strings.CutPrefix(class, prefix); ok && lang != "" {
				return lang
			}
		}
	}
	return ""
}

func isList(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "ul" || n.Data == "ol")
}

func hasChildList(li *html.Node) bool {
	for child := li.FirstChild; child != nil; child = child.NextSibling {
		if isList(child) {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

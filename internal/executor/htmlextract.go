package executor

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// extractFromHTML derives an extract payload from raw markup, producing
// the same JSON shapes the in-page engine emits so rendering does not
// care which side computed the projection. css extraction matches a
// selector against the live DOM and has no markup-only equivalent.
func extractFromHTML(what ast.ExtractKind, markup string) (jsoniter.RawMessage, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("parse html payload: %v", err),
		}
	}

	var payload any
	switch what {
	case ast.ExtractTables:
		payload = tablesFrom(doc)
	case ast.ExtractLinks:
		payload = linksFrom(doc)
	case ast.ExtractImages:
		payload = imagesFrom(doc)
	case ast.ExtractMeta:
		payload = metaFrom(doc)
	case ast.ExtractText:
		payload = flowText(doc)
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("cannot derive %s from a markup payload", what),
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("encode %s payload: %v", what, err),
		}
	}
	return raw, nil
}

type linkItem struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type imageItem struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// tablesFrom collects every table as rows of cell text. Rows without
// cells are dropped, empty tables stay as empty row lists.
func tablesFrom(doc *html.Node) [][][]string {
	tables := [][][]string{}
	visit(doc, func(n *html.Node) {
		if !isElem(n, "table") {
			return
		}
		rows := [][]string{}
		visit(n, func(tr *html.Node) {
			if !isElem(tr, "tr") {
				return
			}
			var cells []string
			for c := tr.FirstChild; c != nil; c = c.NextSibling {
				if isElem(c, "td") || isElem(c, "th") {
					cells = append(cells, cellText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		tables = append(tables, rows)
	})
	return tables
}

// linksFrom collects anchors that carry an href. The href stays as
// written in the markup; resolving it needs the page's base URL, which
// a bare payload does not carry.
func linksFrom(doc *html.Node) []linkItem {
	items := []linkItem{}
	visit(doc, func(n *html.Node) {
		if !isElem(n, "a") {
			return
		}
		href := attrVal(n, "href")
		if href == "" {
			return
		}
		items = append(items, linkItem{Text: cellText(n), Href: href})
	})
	return items
}

func imagesFrom(doc *html.Node) []imageItem {
	items := []imageItem{}
	visit(doc, func(n *html.Node) {
		if !isElem(n, "img") {
			return
		}
		items = append(items, imageItem{Src: attrVal(n, "src"), Alt: attrVal(n, "alt")})
	})
	return items
}

// metaFrom mirrors the engine's meta projection: the document title
// under "title", then every meta element keyed by name or property.
// A meta named "title" overwrites the document title, as it does
// engine-side.
func metaFrom(doc *html.Node) map[string]string {
	meta := map[string]string{"title": titleText(doc)}
	visit(doc, func(n *html.Node) {
		if !isElem(n, "meta") {
			return
		}
		key := attrVal(n, "name")
		if key == "" {
			key = attrVal(n, "property")
		}
		if key == "" {
			return
		}
		for _, a := range n.Attr {
			if strings.EqualFold(a.Key, "content") {
				meta[key] = a.Val
				break
			}
		}
	})
	return meta
}

func titleText(doc *html.Node) string {
	var title string
	var found bool
	visit(doc, func(n *html.Node) {
		if found || !isElem(n, "title") {
			return
		}
		title, found = flatText(n), true
	})
	return title
}

// flowText approximates innerText for a whole document: block elements
// break lines, script and style content disappears, and each line is
// whitespace-collapsed.
func flowText(doc *html.Node) string {
	root := findElem(doc, "body")
	if root == nil {
		root = doc
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if hiddenText(n) {
			return
		}
		breaks := blocksFlow(n)
		if breaks {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if breaks {
			b.WriteByte('\n')
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// visit walks the tree depth-first.
func visit(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visit(c, fn)
	}
}

func findElem(n *html.Node, name string) *html.Node {
	if isElem(n, name) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElem(c, name); found != nil {
			return found
		}
	}
	return nil
}

func isElem(n *html.Node, name string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, name)
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// cellText flattens a node to the single-line form the engine's
// visibleText produces: collapsed whitespace, capped at 120 characters.
func cellText(n *html.Node) string {
	text := flatText(n)
	if runes := []rune(text); len(runes) > 120 {
		text = string(runes[:117]) + "..."
	}
	return text
}

func flatText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
			return
		}
		if hiddenText(c) {
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// hiddenText reports elements whose text never renders.
func hiddenText(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	return false
}

func blocksFlow(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "p", "div", "section", "article", "header", "footer", "main",
		"aside", "nav", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "table", "tr", "form", "blockquote", "pre",
		"br", "hr":
		return true
	}
	return false
}

package executor

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runExtract pulls structured data from the page. The engine returns
// JSON; --format renders it to csv, markdown, or plain text here so the
// engine stays format-agnostic.
func (e *Executor) runExtract(ctx context.Context, c *ast.ExtractCmd) (*schemas.Response, error) {
	format := strings.ToLower(c.Format)
	switch format {
	case "", "json", "csv", "markdown", "md", "text", "txt":
	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("extract --format must be json, csv, markdown, or text, not %q", c.Format),
		}
	}

	resp, err := e.runWire(ctx, c)
	if err != nil {
		return nil, err
	}
	// An engine may answer with raw markup instead of a computed
	// payload. Derive the projection here so both shapes come out
	// identical.
	if len(resp.Data) == 0 && resp.HTML != "" {
		data, derr := extractFromHTML(c.What, resp.HTML)
		if derr != nil {
			return nil, derr
		}
		resp.Data = data
		resp.HTML = ""
	}
	if format == "" || format == "json" {
		return resp, nil
	}

	text, err := renderExtract(c.What, resp.Data, format)
	if err != nil {
		return nil, err
	}
	resp.Data = nil
	resp.Text = text
	return resp, nil
}

// renderExtract decodes the payload for its kind and renders it in the
// requested format.
func renderExtract(what ast.ExtractKind, data jsoniter.RawMessage, format string) (string, error) {
	decodeErr := func(err error) error {
		return &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("decode %s payload: %v", what, err),
		}
	}

	switch what {
	case ast.ExtractTables:
		var tables [][][]string
		if err := json.Unmarshal(data, &tables); err != nil {
			return "", decodeErr(err)
		}
		return renderTables(tables, format), nil

	case ast.ExtractLinks:
		var links []struct {
			Text string `json:"text"`
			Href string `json:"href"`
		}
		if err := json.Unmarshal(data, &links); err != nil {
			return "", decodeErr(err)
		}
		rows := make([][]string, len(links))
		for i, l := range links {
			rows[i] = []string{l.Text, l.Href}
		}
		return renderPairs(rows, []string{"text", "href"}, format, func(r []string) string {
			return fmt.Sprintf("- [%s](%s)", escapeMarkdown(r[0]), r[1])
		}), nil

	case ast.ExtractImages:
		var images []struct {
			Src string `json:"src"`
			Alt string `json:"alt"`
		}
		if err := json.Unmarshal(data, &images); err != nil {
			return "", decodeErr(err)
		}
		rows := make([][]string, len(images))
		for i, im := range images {
			rows[i] = []string{im.Src, im.Alt}
		}
		return renderPairs(rows, []string{"src", "alt"}, format, func(r []string) string {
			return fmt.Sprintf("- ![%s](%s)", escapeMarkdown(r[1]), r[0])
		}), nil

	case ast.ExtractMeta:
		var meta map[string]string
		if err := json.Unmarshal(data, &meta); err != nil {
			return "", decodeErr(err)
		}
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, len(keys))
		for i, k := range keys {
			rows[i] = []string{k, meta[k]}
		}
		return renderPairs(rows, []string{"name", "content"}, format, func(r []string) string {
			return fmt.Sprintf("- **%s**: %s", escapeMarkdown(r[0]), r[1])
		}), nil

	case ast.ExtractText:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return "", decodeErr(err)
		}
		return renderLines(strings.Split(text, "\n"), format), nil

	case ast.ExtractCss:
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return "", decodeErr(err)
		}
		return renderLines(values, format), nil
	}
	return "", &schemas.ExecError{
		Code:    schemas.CodeInvalidRequest,
		Message: fmt.Sprintf("unknown extract kind %q", what),
	}
}

// renderTables renders every table, blank-line separated.
func renderTables(tables [][][]string, format string) string {
	rendered := make([]string, 0, len(tables))
	for _, rows := range tables {
		if len(rows) == 0 {
			continue
		}
		switch format {
		case "csv":
			rendered = append(rendered, toCSV(rows))
		case "markdown", "md":
			rendered = append(rendered, toMarkdownTable(rows))
		default:
			lines := make([]string, len(rows))
			for i, r := range rows {
				lines[i] = strings.Join(r, "\t")
			}
			rendered = append(rendered, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(rendered, "\n\n")
}

// renderPairs renders two-column data; md builds one line per row.
func renderPairs(rows [][]string, header []string, format string, md func([]string) string) string {
	switch format {
	case "csv":
		return toCSV(append([][]string{header}, rows...))
	case "markdown", "md":
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = md(r)
		}
		return strings.Join(lines, "\n")
	default:
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = strings.Join(r, "\t")
		}
		return strings.Join(lines, "\n")
	}
}

func renderLines(lines []string, format string) string {
	switch format {
	case "csv":
		rows := make([][]string, len(lines))
		for i, l := range lines {
			rows[i] = []string{l}
		}
		return toCSV(rows)
	case "markdown", "md":
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = "- " + l
		}
		return strings.Join(out, "\n")
	default:
		return strings.Join(lines, "\n")
	}
}

func toCSV(rows [][]string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, r := range rows {
		// Writes to a strings.Builder cannot fail.
		_ = w.Write(r)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// toMarkdownTable treats the first row as the header.
func toMarkdownTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	pad := func(r []string) []string {
		out := make([]string, width)
		for i := range out {
			if i < len(r) {
				out[i] = escapeMarkdown(r[i])
			}
		}
		return out
	}
	var lines []string
	lines = append(lines, "| "+strings.Join(pad(rows[0]), " | ")+" |")
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
	for _, r := range rows[1:] {
		lines = append(lines, "| "+strings.Join(pad(r), " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

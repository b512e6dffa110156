package output

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
	"github.com/dustin/go-humanize"

	"github.com/oppfinder/opps/internal/observability"
	"github.com/oppfinder/opps/internal/tui"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	// Text styles
	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Warning lipgloss.Style

	// Table styles
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := isTTY || forceStyled

	// lipgloss.NewRenderer doesn't carry the profile through to tables,
	// so set it globally.
	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	r := &Renderer{width: width, styled: styled}
	plain := lipgloss.NewStyle()
	r.Summary, r.Muted, r.Data, r.Error, r.Hint, r.Warning = plain, plain, plain, plain, plain, plain
	r.Header, r.Cell, r.CellMuted = plain, plain, plain
	if !styled {
		return r
	}

	// Piped output can't report its background, so use the dark palette.
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Dark))
	}
	r.Summary = fg(theme.Primary).Bold(true)
	r.Muted = fg(theme.Muted)
	r.Data = fg(theme.Foreground)
	r.Error = fg(theme.Error).Bold(true)
	r.Hint = fg(theme.Muted).Italic(true)
	r.Warning = fg(theme.Warning)
	r.Header = fg(theme.Foreground).Bold(true)
	r.Cell = fg(theme.Foreground)
	r.CellMuted = fg(theme.Muted)
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
			width = cols
		}
		isTTY = term.IsTerminal(f.Fd())
	}
	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if notice, ok := resp.Meta["notice"].(string); ok && notice != "" {
		b.WriteString("\n")
		b.WriteString(r.Warning.Render(notice))
		b.WriteString("\n")
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Next:"))
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			line := r.Muted.Render("  " + bc.Cmd)
			if bc.Description != "" {
				line += r.Muted.Render("  # " + bc.Description)
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + strings.Join(parts, " | ")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)") + "\n")
			return
		}
		r.renderTable(b, d)
	case map[string]any:
		r.renderObject(b, d)
	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)") + "\n")
			return
		}
		if maps := toMapSlice(d); maps != nil {
			r.renderTable(b, maps)
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render("• "+formatCell(item)) + "\n")
		}
	case string:
		b.WriteString(r.Data.Render(d) + "\n")
	case nil:
		b.WriteString(r.Muted.Render("(no data)") + "\n")
	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)) + "\n")
	}
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := fitColumns(detectColumns(data), data, r.width)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatValue(col.key, item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	fields := objectFields(data)
	if len(fields) == 0 {
		b.WriteString(r.Muted.Render("(no data)") + "\n")
		return
	}

	maxLen := 0
	for _, k := range fields {
		maxLen = max(maxLen, len(formatHeader(k)))
	}
	for _, k := range fields {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(k)))
		style := r.Data
		if mutedColumns[k] {
			style = r.CellMuted
		}
		b.WriteString(label + style.Render(formatValue(k, data[k])) + "\n")
	}
}

func toMapSlice(slice []any) []map[string]any {
	if len(slice) == 0 {
		return nil
	}
	result := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		result = append(result, m)
	}
	return result
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":          1,
	"name":        2,
	"title":       2,
	"category":    3,
	"status":      4,
	"query":       4,
	"deadline":    5,
	"page":        5,
	"description": 7,
	"saved_at":    8,
	"fetched_at":  8,
	"updated_at":  9,
}

// Columns to render in muted style
var mutedColumns = map[string]bool{
	"id":         true,
	"saved_at":   true,
	"fetched_at": true,
	"updated_at": true,
}

// Columns left out of tables and object views
var skipColumns = map[string]bool{
	"url":     true,
	"app_url": true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func keyPriority(key string) int {
	if p := columnPriority[key]; p != 0 {
		return p
	}
	return 50
}

// detectColumns picks scalar columns from the first row, ordered by priority.
func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}
	var cols []column
	for key, val := range data[0] {
		if skipColumns[key] {
			continue
		}
		switch val.(type) {
		case map[string]any, []map[string]any, []any:
			continue
		}
		cols = append(cols, column{
			key:      key,
			header:   formatHeader(key),
			priority: keyPriority(key),
			muted:    mutedColumns[key],
		})
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

// fitColumns drops the lowest-priority columns until the table fits width.
func fitColumns(cols []column, data []map[string]any, width int) []column {
	const padding = 2
	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			cols[i].width = max(cols[i].width, lipgloss.Width(formatValue(cols[i].key, row[cols[i].key])))
		}
		cols[i].width = min(cols[i].width, 40)
	}

	for len(cols) > 1 {
		total := 0
		for _, col := range cols {
			total += col.width + padding
		}
		if total <= width {
			break
		}
		cols = cols[:len(cols)-1]
	}
	return cols
}

// objectFields returns the renderable keys of an object in display order.
func objectFields(data map[string]any) []string {
	var fields []string
	for k, v := range data {
		if skipColumns[k] {
			continue
		}
		switch v.(type) {
		case map[string]any, []map[string]any:
			continue
		}
		fields = append(fields, k)
	}
	sort.Slice(fields, func(i, j int) bool {
		pi, pj := keyPriority(fields[i]), keyPriority(fields[j])
		if pi != pj {
			return pi < pj
		}
		return fields[i] < fields[j]
	})
	return fields
}

func formatHeader(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSuffix(key, " at")
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if len([]rune(v)) > 40 {
			return string([]rune(v)[:37]) + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatValue formats a cell, rendering timestamp columns as relative ages.
func formatValue(key string, val any) string {
	if !strings.HasSuffix(key, "_at") {
		return formatCell(val)
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return formatCell(val)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return formatCell(val)
	}
	return RelativeTime(t, time.Now())
}

// RelativeTime renders t relative to now: "just now", "3 minutes ago",
// and a calendar date beyond a week.
func RelativeTime(t, now time.Time) string {
	ago := now.Sub(t)
	switch {
	case ago < 0:
		return t.Format("Jan 2, 2006")
	case ago < time.Minute:
		return "just now"
	case ago < humanize.Week:
		return humanize.CustomRelTime(t, now, "ago", "from now", magnitudes)
	default:
		return t.Format("Jan 2, 2006")
	}
}

var magnitudes = []humanize.RelTimeMagnitude{
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "yesterday", DivBy: 1},
	{D: humanize.Week, Format: "%d days %s", DivBy: humanize.Day},
	{D: math.MaxInt64, Format: "a long while %s", DivBy: 1},
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct {
	width int
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	width, _ := terminalInfo(w)
	return &MarkdownRenderer{width: width}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if notice, ok := resp.Meta["notice"].(string); ok && notice != "" {
		b.WriteString("\n> " + notice + "\n")
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		r.renderTable(b, d)
	case map[string]any:
		fields := objectFields(d)
		if len(fields) == 0 {
			b.WriteString("*No data*\n")
			return
		}
		for _, k := range fields {
			b.WriteString("- **" + formatHeader(k) + ":** " + formatValue(k, d[k]) + "\n")
		}
	case []any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		if maps := toMapSlice(d); maps != nil {
			r.renderTable(b, maps)
			return
		}
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}
	case string:
		b.WriteString(d + "\n")
	case nil:
		b.WriteString("*No data*\n")
	default:
		fmt.Fprintf(b, "%v\n", data)
	}
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any) {
	cols := detectColumns(data)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = strings.ReplaceAll(formatValue(col.key, item[col.key]), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

// statsParts formats meta["stats"] (from --stats) as summary pieces.
func statsParts(meta map[string]any) []string {
	if meta == nil {
		return nil
	}
	stats, ok := meta["stats"].(map[string]any)
	if !ok {
		return nil
	}
	return observability.SessionMetricsFromMap(stats).FormatParts()
}

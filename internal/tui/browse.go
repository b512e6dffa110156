package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/oppfinder/opps/internal/search"
	"github.com/oppfinder/opps/internal/tui/empty"
)

// searchDebounce is how long typing must pause before the search text
// is applied.
const searchDebounce = 300 * time.Millisecond

type browseKeyMap struct {
	Search   key.Binding
	Category key.Binding
	Status   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Retry    key.Binding
	Reset    key.Binding
	Quit     key.Binding
	Submit   key.Binding
	Cancel   key.Binding
}

func defaultBrowseKeyMap() browseKeyMap {
	return browseKeyMap{
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Category: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
		Status:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		Next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next")),
		Prev:     key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "prev")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Submit:   key.NewBinding(key.WithKeys("enter")),
		Cancel:   key.NewBinding(key.WithKeys("esc")),
	}
}

// editField is the filter the text input is editing.
type editField int

const (
	editNone editField = iota
	editSearch
	editCategory
	editStatus
)

func (f editField) label() string {
	switch f {
	case editSearch:
		return "Search"
	case editCategory:
		return "Category"
	case editStatus:
		return "Status"
	}
	return ""
}

// searchDebounceMsg fires after typing pauses in the search field.
type searchDebounceMsg struct {
	text string
	seq  int
}

// Browse is the interactive list screen. It renders the Controller's
// ViewState and turns keys into Controller setters.
type Browse struct {
	ctx     context.Context
	ctrl    *search.Controller
	styles  *Styles
	keys    browseKeyMap
	input   textinput.Model
	spinner spinner.Model
	now     func() time.Time

	editing     editField
	debounceSeq int
	notice      string // last surfaced fetch failure
	width       int
	height      int
	quitting    bool

	body     string
	bodyFrom bodyKey
}

// bodyKey identifies the inputs the rendered result list depends on.
type bodyKey struct {
	version   uint64
	key       search.QueryKey
	width     int
	skeleton  bool
	showError bool
	errText   string
}

// NewBrowse creates the browse screen for ctrl.
func NewBrowse(ctx context.Context, ctrl *search.Controller, styles *Styles) *Browse {
	if styles == nil {
		styles = NewStyles()
	}

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Prompt = ""

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Theme().Primary)

	b := &Browse{
		ctx:     ctx,
		ctrl:    ctrl,
		styles:  styles,
		keys:    defaultBrowseKeyMap(),
		input:   ti,
		spinner: s,
		now:     time.Now,
		width:   80,
		height:  24,
	}
	ctrl.OnError(func(k search.QueryKey, err error) {
		b.notice = err.Error()
	})
	return b
}

// Init implements tea.Model.
func (b *Browse) Init() tea.Cmd {
	return tea.Batch(b.ctrl.Load(b.ctx), b.spinner.Tick)
}

// Quitting reports whether the user asked to leave.
func (b *Browse) Quitting() bool { return b.quitting }

// Update implements tea.Model.
func (b *Browse) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.input.Width = max(0, msg.Width-16)
		return b, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(msg)
		return b, cmd

	case searchDebounceMsg:
		if msg.seq != b.debounceSeq || b.editing != editSearch {
			return b, nil
		}
		return b, b.navigate(b.ctrl.SetSearchText(msg.text))

	case search.FetchedMsg:
		if msg.Err == nil && msg.Key == b.ctrl.Filter().Key() {
			b.notice = ""
		}
		return b, b.ctrl.Update(msg)

	case tea.KeyMsg:
		if b.editing != editNone {
			return b, b.handleEditKey(msg)
		}
		return b, b.handleKey(msg)
	}
	return b, b.ctrl.Update(msg)
}

func (b *Browse) handleKey(msg tea.KeyMsg) tea.Cmd {
	f := b.ctrl.Filter()
	switch {
	case key.Matches(msg, b.keys.Quit):
		b.quitting = true
		return tea.Quit
	case key.Matches(msg, b.keys.Search):
		return b.startEdit(editSearch, f.SearchText)
	case key.Matches(msg, b.keys.Category):
		return b.startEdit(editCategory, f.Category)
	case key.Matches(msg, b.keys.Status):
		return b.startEdit(editStatus, f.Status)
	case key.Matches(msg, b.keys.Next):
		return b.navigate(b.ctrl.NextPage())
	case key.Matches(msg, b.keys.Prev):
		return b.navigate(b.ctrl.PrevPage())
	case key.Matches(msg, b.keys.Retry):
		b.notice = ""
		return b.ctrl.Retry()
	case key.Matches(msg, b.keys.Reset):
		return b.navigate(b.ctrl.Reset())
	}
	return nil
}

func (b *Browse) startEdit(field editField, value string) tea.Cmd {
	b.editing = field
	b.input.SetValue(value)
	b.input.CursorEnd()
	return b.input.Focus()
}

func (b *Browse) stopEdit() {
	b.editing = editNone
	b.debounceSeq++
	b.input.Blur()
}

func (b *Browse) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, b.keys.Cancel):
		b.stopEdit()
		return nil
	case key.Matches(msg, b.keys.Submit):
		field, value := b.editing, b.input.Value()
		b.stopEdit()
		return b.navigate(b.apply(field, value))
	case msg.Type == tea.KeyCtrlC:
		b.quitting = true
		return tea.Quit
	}

	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	if b.editing != editSearch {
		return cmd
	}

	// Search applies as you type, once typing pauses
	b.debounceSeq++
	seq, text := b.debounceSeq, b.input.Value()
	return tea.Batch(cmd, tea.Tick(searchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{text: text, seq: seq}
	}))
}

func (b *Browse) apply(field editField, value string) tea.Cmd {
	switch field {
	case editSearch:
		return b.ctrl.SetSearchText(value)
	case editCategory:
		return b.ctrl.SetCategory(value)
	case editStatus:
		return b.ctrl.SetStatus(value)
	}
	return nil
}

// navigate clears a stale notice when the user moves to another key.
func (b *Browse) navigate(cmd tea.Cmd) tea.Cmd {
	b.notice = ""
	return cmd
}

// View implements tea.Model.
func (b *Browse) View() string {
	if b.quitting {
		return ""
	}
	v := b.ctrl.View()

	sections := []string{b.renderHeader(v), b.cachedBody(v), b.renderFooter(v)}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (b *Browse) renderHeader(v search.ViewState) string {
	title := b.styles.Title.Render("Opportunities")
	if v.URL != "" {
		title += "  " + b.styles.Muted.Render(v.URL)
	}

	if b.editing != editNone {
		prompt := b.styles.Prompt.Render(b.editing.label() + ": ")
		return title + "\n" + prompt + b.input.View() + "\n"
	}

	chips := lipgloss.JoinHorizontal(lipgloss.Top,
		b.chip("search", v.Filter.SearchText),
		b.chip("category", v.Filter.Category),
		b.chip("status", v.Filter.Status),
	)
	return title + "\n" + chips
}

func (b *Browse) chip(name, value string) string {
	if value == "" {
		return b.styles.ChipEmpty.Render(name + ": any")
	}
	return b.styles.Chip.Render(name + ": " + value)
}

// cachedBody re-renders the result list only when the cache or the
// visible key changed since the last frame.
func (b *Browse) cachedBody(v search.ViewState) string {
	k := bodyKey{
		version:   v.Version,
		key:       v.Key,
		width:     b.width,
		skeleton:  v.Skeleton,
		showError: v.ShowError,
	}
	if v.ShowError && v.Err != nil {
		k.errText = v.Err.Error()
	}
	if b.body == "" || k != b.bodyFrom {
		b.body, b.bodyFrom = b.renderBody(v), k
	}
	return b.body
}

func (b *Browse) renderBody(v search.ViewState) string {
	switch {
	case v.Skeleton:
		return b.renderSkeleton()
	case v.ShowError:
		var err error
		if v.Err != nil {
			err = v.Err
		}
		return b.renderMessage(empty.LoadFailed(err), b.styles.Error)
	}

	page := v.Entry.Page
	if len(page.Items) == 0 {
		return b.renderMessage(empty.NoMatches(v.Filter), b.styles.Muted)
	}

	rows := make([]string, 0, len(page.Items)+1)
	if v.Entry.Optimistic() {
		rows = append(rows, b.styles.Projection.Render("Showing matches from the previous page while results load"))
	}
	for _, it := range page.Items {
		rows = append(rows, b.renderItem(it))
	}
	return "\n" + strings.Join(rows, "\n") + "\n"
}

func (b *Browse) renderMessage(m empty.Message, title lipgloss.Style) string {
	lines := []string{"", title.Render(m.Title)}
	if m.Body != "" {
		lines = append(lines, b.styles.Body.Render(m.Body))
	}
	for _, h := range m.Hints {
		lines = append(lines, b.styles.Muted.Render(h))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (b *Browse) renderItem(it search.Item) string {
	title := it.Title
	if title == "" {
		title = it.ID
	}
	var badges []string
	for _, s := range []string{it.Category, it.Status} {
		if s != "" {
			badges = append(badges, s)
		}
	}
	line := b.styles.RowTitle.Render(truncate(title, max(20, b.width-30)))
	if len(badges) > 0 {
		line += "  " + b.styles.Badge.Render(strings.Join(badges, " · "))
	}
	return b.styles.Row.Render(line)
}

func (b *Browse) renderSkeleton() string {
	bar := b.styles.Skeleton.Render(strings.Repeat("░", max(10, min(b.width-8, 48))))
	rows := make([]string, 5)
	for i := range rows {
		rows[i] = b.styles.Row.Render(bar)
	}
	return "\n" + strings.Join(rows, "\n") + "\n"
}

func (b *Browse) renderFooter(v search.ViewState) string {
	var parts []string
	if v.HasEntry {
		p := v.Entry.Page
		pages := max(p.TotalPages, 1)
		parts = append(parts,
			fmt.Sprintf("Page %d of %d", v.Filter.Page, pages),
			fmt.Sprintf("%s %s", humanize.Comma(int64(p.TotalCount)), plural(p.TotalCount, "result", "results")),
		)
		if !v.Entry.Optimistic() {
			parts = append(parts, "fetched "+humanize.RelTime(v.Entry.FetchedAt, b.now(), "ago", "from now"))
		}
	}
	if v.Pending {
		parts = append(parts, b.spinner.View()+" loading")
	}

	status := b.styles.Muted.Render(strings.Join(parts, " · "))
	if b.notice != "" && !v.ShowError {
		status += "\n" + b.styles.Warning.Render("⚠ "+b.notice)
	}

	help := b.styles.RenderKeyHelp(
		[2]string{"/", "search"}, [2]string{"c", "category"}, [2]string{"s", "status"},
		[2]string{"n/p", "page"}, [2]string{"r", "retry"}, [2]string{"x", "reset"}, [2]string{"q", "quit"},
	)
	if b.editing != editNone {
		help = b.styles.RenderKeyHelp([2]string{"enter", "apply"}, [2]string{"esc", "cancel"})
	}
	return b.styles.StatusBar.Width(max(0, b.width)).Render(status + "\n" + help)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// RunBrowse runs the browse screen full-screen until the user quits.
func RunBrowse(ctx context.Context, ctrl *search.Controller) error {
	b := NewBrowse(ctx, ctrl, NewStylesWithTheme(ResolveTheme()))
	_, err := tea.NewProgram(b, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Package commands implements the opps subcommands.
package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/completion"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/search"
)

// LastURLFile holds the location of the most recent browse session.
const LastURLFile = "last_url"

// filterFlags are the flags shared by every command that takes a filter.
type filterFlags struct {
	url        string
	category   string
	status     string
	searchText string
	page       int
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.url, "url", "", "Start from a list URL or query string")
	cmd.Flags().StringVarP(&ff.category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&ff.status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVar(&ff.searchText, "search", "", "Filter by text in title or description")
	cmd.Flags().IntVarP(&ff.page, "page", "p", 1, "Page number")

	completer := completion.NewCompleter(nil)
	_ = cmd.RegisterFlagCompletionFunc("category", completer.FieldCompletion("category"))
	_ = cmd.RegisterFlagCompletionFunc("status", completer.FieldCompletion("status"))
}

// resolve builds the filter: --url first, then explicit filter flags,
// then --page. Setting a filter flag without --page starts at page 1.
func (ff *filterFlags) resolve(cmd *cobra.Command) (search.FilterState, error) {
	fs := search.DefaultFilter()
	if ff.url != "" {
		decoded, err := search.Decode(ff.url)
		if err != nil {
			return fs, output.ErrUsageHint(
				fmt.Sprintf("Invalid --url: %v", err),
				"Pass a list URL such as /opportunities?category=environment&page=2",
			)
		}
		fs = decoded
	}

	if cmd.Flags().Changed("category") {
		fs = fs.WithCategory(ff.category)
	}
	if cmd.Flags().Changed("status") {
		fs = fs.WithStatus(ff.status)
	}
	if cmd.Flags().Changed("search") {
		fs = fs.WithSearchText(ff.searchText)
	}
	if cmd.Flags().Changed("page") {
		if ff.page < 1 {
			return fs, output.ErrUsage("--page must be at least 1")
		}
		fs = fs.WithPage(ff.page)
	}
	return fs.Normalize(), nil
}

// anySet reports whether the user passed any filter flag.
func (ff *filterFlags) anySet(cmd *cobra.Command) bool {
	for _, name := range []string{"url", "category", "status", "search", "page"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// drive runs cmd to completion outside a Bubble Tea program, handing each
// message to the Controller. With follow set, the Cmds the Controller
// returns (prefetch timers and background fetches) run too.
func drive(ctrl *search.Controller, cmd tea.Cmd, follow bool) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			if c := ctrl.Update(msg); follow {
				queue = append(queue, c)
			}
		}
	}
}

// listURL renders the shareable location for fs.
func listURL(fs search.FilterState) string {
	return search.NewURLSync(nil, appctx.BrowsePath).ToURL(fs)
}

// listCmd is the command line that reproduces fs.
func listCmd(fs search.FilterState) string {
	return "opps list --url " + strconv.Quote(listURL(fs))
}

func lastURLPath(app *appctx.App) string {
	return filepath.Join(app.Config.CacheDir, LastURLFile)
}

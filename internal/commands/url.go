package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/search"
)

// location is the url command's payload.
type location struct {
	URL    string             `json:"url"`
	Key    string             `json:"key"`
	Filter search.FilterState `json:"filter"`
}

func newLocation(fs search.FilterState) location {
	return location{URL: listURL(fs), Key: fs.Key().String(), Filter: fs}
}

// NewURLCmd creates the url command for sharing list locations.
func NewURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Show or convert list URLs",
		Long: `Show the location of the last browse session, or convert between
filters and list URLs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			bar := search.NewFileAddressBar(lastURLPath(app), "")
			if err := bar.Err(); err != nil {
				return fmt.Errorf("reading last location: %w", err)
			}
			if bar.Current() == "" {
				return output.ErrNotFoundHint("location", "last browse session", "Start one with: opps browse")
			}
			fs := search.NewURLSync(bar, appctx.BrowsePath).Hydrate()
			return app.OK(newLocation(fs),
				output.WithSummary(listURL(fs)),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "list",
					Cmd:         listCmd(fs),
					Description: "List this page",
				}),
			)
		},
	}

	cmd.AddCommand(newURLEncodeCmd(), newURLDecodeCmd())
	return cmd
}

func newURLEncodeCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a list URL from filter flags",
		Example: `  opps url encode --category environment --search "river & lake"
  opps url encode --url "/opportunities?status=open" --page 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			fs, err := ff.resolve(cmd)
			if err != nil {
				return err
			}
			return app.OK(newLocation(fs), output.WithSummary(listURL(fs)))
		},
	}

	ff.register(cmd)
	return cmd
}

func newURLDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <url|query>",
		Short: "Show the filters a list URL encodes",
		Long: `Show the filters a list URL encodes.

Accepts a full URL, a path with a query, or a bare query string. Unknown
fields are ignored and a missing or invalid page becomes 1.`,
		Example: `  opps url decode "https://opps.example.com/opportunities?category=community&page=2"
  opps url decode "search=tree&page=x"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			fs, err := search.Decode(args[0])
			if err != nil {
				return output.ErrUsage(fmt.Sprintf("Cannot decode %q: %v", args[0], err))
			}
			fs = fs.Normalize()
			return app.OK(newLocation(fs), output.WithSummary(describeFilter(fs)))
		},
	}
}

// describeFilter is a one-line human summary of fs.
func describeFilter(fs search.FilterState) string {
	s := ""
	add := func(name, value string) {
		if value == "" {
			return
		}
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("%s %q", name, value)
	}
	add("category", fs.Category)
	add("status", fs.Status)
	add("search", fs.SearchText)
	if s == "" {
		s = "all opportunities"
	}
	return fmt.Sprintf("%s, page %d", s, fs.Page)
}

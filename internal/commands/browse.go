package commands

import (
	"github.com/spf13/cobra"

	"github.com/oppfinder/opps/internal/appctx"
	"github.com/oppfinder/opps/internal/output"
	"github.com/oppfinder/opps/internal/search"
	"github.com/oppfinder/opps/internal/tui"
)

// NewBrowseCmd creates the interactive browse command.
func NewBrowseCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse opportunities interactively",
		Long: `Browse opportunities in a full-screen list.

Keys:
  /      edit search text      c  edit category     s  edit status
  n, →   next page             p, ←  previous page
  r      retry or refresh      x  reset filters     q  quit

The list resumes where the last session left off. Filter flags start
from a different place instead. Print the current location with: opps url`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if !app.IsInteractive() {
				return output.ErrUsageHint("browse needs an interactive terminal", "Use: opps list")
			}

			bar := search.NewFileAddressBar(lastURLPath(app), "")
			if err := bar.Err(); err != nil {
				app.Logger.Warn("could not read last location", "path", lastURLPath(app), "error", err)
			}
			if ff.anySet(cmd) {
				fs, err := ff.resolve(cmd)
				if err != nil {
					return err
				}
				bar.Replace(listURL(fs))
			}

			sess, err := app.NewSession(cmd.Context(), bar, search.DefaultFilter())
			if err != nil {
				return err
			}
			if err := tui.RunBrowse(cmd.Context(), sess.Controller); err != nil {
				return err
			}
			if err := bar.Err(); err != nil {
				app.Logger.Warn("could not save location", "path", lastURLPath(app), "error", err)
			}

			fs := sess.Controller.Filter()
			return app.OK(map[string]any{
				"url": bar.Current(),
				"key": fs.Key().String(),
			},
				output.WithSummary("Last location: "+bar.Current()),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "list",
					Cmd:         listCmd(fs),
					Description: "List this page",
				}),
			)
		},
	}

	ff.register(cmd)
	return cmd
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"amalnama/internal/app"
)

func newSeedCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo university into an empty store",
		Long: `Load the demo users, courses, attendance, grades, notifications and
audit entries. A seeded store is left alone unless --force is given, which
clears every collection first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				wrote, err := a.Seeder.Seed(cmd.Context(), force)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), map[string]bool{"seeded": wrote}, func(w io.Writer) {
					if wrote {
						fmt.Fprintln(w, "demo data loaded")
					} else {
						fmt.Fprintln(w, "store already seeded, use --force to reload")
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear and reseed an already seeded store")
	return cmd
}

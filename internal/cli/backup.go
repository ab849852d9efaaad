package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"amalnama/internal/app"
	"amalnama/internal/backup"
)

func newBackupCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore every collection",
	}
	cmd.AddCommand(newBackupExportCommand(opts), newBackupImportCommand(opts))
	return cmd
}

func newBackupExportCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup document to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				doc, err := a.Backup.Export(cmd.Context())
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return backup.Write(cmd.OutOrStdout(), doc)
				}
				f, err := os.Create(output)
				if err != nil {
					return errors.Annotatef(err, "create %s", output)
				}
				if err := backup.Write(f, doc); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return errors.Annotatef(err, "close %s", output)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "backup written to %s (%d collections)\n", output, len(doc.Data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newBackupImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace collections with those in a backup document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Annotatef(err, "open %s", args[0])
			}
			defer f.Close()
			doc, err := backup.Read(f)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app.App) error {
				res, err := a.Backup.Import(cmd.Context(), doc)
				if err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
					fmt.Fprintf(w, "restored %d collections", len(res.Restored))
					if len(res.Ignored) > 0 {
						fmt.Fprintf(w, ", ignored %v", res.Ignored)
					}
					fmt.Fprintln(w)
				})
			})
		},
	}
}

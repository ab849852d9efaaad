// Package cli implements the amalctl administration commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"amalnama/internal/app"
)

// Opener wires the application for one command run.
type Opener func() (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the amalctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "amalctl",
		Short:         "Administer the AMAL-NAMA academic engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newBackupCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	return cmd
}

// withApp opens the application, runs fn and closes it.
func (o *RootOptions) withApp(fn func(a *app.App) error) error {
	a, err := o.open()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// emit writes v as JSON or hands it to text.
func (o *RootOptions) emit(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/spf13/cobra"
)

func newPayloadCmd(a *app) *cobra.Command {
	var filesOnly bool
	cmd := &cobra.Command{
		Use:   "payload FILE",
		Short: "Print the create request a submission would send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.build(cmd, args[0])
			if err != nil {
				return err
			}
			var v any = res.Request
			if filesOnly {
				v = res.Bundle
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().BoolVar(&filesOnly, "files", false, "print the upload manifest instead")
	return cmd
}

// build loads path and builds its payload, printing violations when the
// project is incomplete.
func (a *app) build(cmd *cobra.Command, path string) (*payload.Result, error) {
	s, err := LoadFile(path, a.log)
	if err != nil {
		return nil, err
	}
	opts, err := a.buildOptions()
	if err != nil {
		return nil, err
	}
	return buildSnapshot(cmd, s.Snapshot(), opts)
}

func buildSnapshot(cmd *cobra.Command, snap project.Snapshot, opts payload.Options) (*payload.Result, error) {
	res, err := payload.Build(snap, opts)
	var ime *payload.InvalidModelError
	if errors.As(err, &ime) {
		fmt.Fprintln(cmd.ErrOrStderr(), "⚠️ Errores detectados:")
		fmt.Fprintln(cmd.ErrOrStderr(), projectcheck.Messages(ime.Violations))
		return nil, ErrViolations
	}
	return res, err
}

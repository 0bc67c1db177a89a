package cli

import (
	"fmt"

	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "List every completeness violation of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadFile(args[0], a.log)
			if err != nil {
				return err
			}
			vs := projectcheck.Check(s.Snapshot())
			if len(vs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Sin errores")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "⚠️ Errores detectados:")
			fmt.Fprintln(cmd.OutOrStdout(), projectcheck.Messages(vs))
			return ErrViolations
		},
	}
}

package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit FILE",
		Short: "Upload the bound TIFFs and create the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeouts.ConfigureFromEnv()

			res, err := a.build(cmd, args[0])
			if err != nil {
				return err
			}
			client, err := submission.NewClient(a.v.GetString("backend_url"), &http.Client{}, a.log)
			if err != nil {
				return err
			}

			a.log.Info("submitting",
				zap.String("project", res.Request.ProjectName),
				zap.Int("files", len(res.Bundle.Files)))

			out, err := submission.New(client, a.log, submission.WithClock(a.now)).Submit(cmd.Context(), res)
			var pe *submission.PhaseError
			if errors.As(err, &pe) {
				fmt.Fprintln(cmd.OutOrStdout(), pe.Report())
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Report())
			return nil
		},
	}
}

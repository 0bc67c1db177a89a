// Package cli implements rasterctl, which validates, previews and submits
// projects described in YAML files without the editor service.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrViolations is returned when a project is incomplete. The violations
// have already been printed.
var ErrViolations = errors.New("project has violations")

var version = "dev"

type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	log     *zap.Logger
	now     func() time.Time
}

// NewRootCmd builds the rasterctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop(), now: time.Now}

	root := &cobra.Command{
		Use:           "rasterctl",
		Short:         "Validate, preview and submit raster segmentation projects",
		Long:          `rasterctl works on project descriptions written in YAML: it checks them for completeness, prints the payload the processing backend would receive, and submits them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ~/.config/rasterctl/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")
	pf.String("backend-url", "http://localhost:8000", "processing backend base URL")
	pf.String("email-domain", payload.DefaultEmailDomain, "institutional email domain")
	pf.String("stamp", string(payload.StampDate), "project name stamp: date or datetime")

	_ = a.v.BindPFlag("backend_url", pf.Lookup("backend-url"))
	_ = a.v.BindPFlag("email_domain", pf.Lookup("email-domain"))
	_ = a.v.BindPFlag("project_name_stamp", pf.Lookup("stamp"))

	root.AddCommand(
		newValidateCmd(a),
		newPayloadCmd(a),
		newSubmitCmd(a),
	)
	return root
}

func (a *app) init() error {
	a.v.SetEnvPrefix("RASTERCTL")
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		a.v.AddConfigPath(filepath.Join(home, ".config", "rasterctl"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if a.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.log = l
	}
	return nil
}

func (a *app) buildOptions() (payload.Options, error) {
	stamp, err := payload.ParseStamp(a.v.GetString("project_name_stamp"))
	if err != nil {
		return payload.Options{}, err
	}
	return payload.Options{
		EmailDomain: a.v.GetString("email_domain"),
		Stamp:       stamp,
		Now:         a.now(),
	}, nil
}

// Execute runs rasterctl and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrViolations):
		return 1
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) { version = v }

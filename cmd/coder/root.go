package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coder/internal/config"
)

type rootOptions struct {
	cfgPath string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "coder",
		Short:         "Match raw attribute values to reference catalog ids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "coder.yaml", "run file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the run file is expanded")

	cmd.AddCommand(newRunCmd(opts), newValidateCmd(opts))
	return cmd
}

// load reads the run file after loading the env file.
func (o *rootOptions) load() (config.Run, error) {
	if err := config.LoadEnv(o.envFile); err != nil {
		return config.Run{}, err
	}
	return config.Load(o.cfgPath)
}

// report prints issues and returns an error when any of them blocks the run.
func report(w io.Writer, path string, issues []config.Issue) error {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %s", path)
	}
	return nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a run file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.load()
			if err != nil {
				return err
			}
			if err := report(cmd.ErrOrStderr(), opts.cfgPath, config.ValidateRun(r)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", opts.cfgPath)
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pbar1/ssh-benchmark/internal/manifest"
)

func validateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration and list the objects it would render",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			out, err := manifest.Generate(cfg.Scale)
			if err != nil {
				logProblems(logger, err)
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tFILE")
			for _, r := range out.Resources {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Kind, r.Name, r.FileName)
			}
			return tw.Flush()
		},
	}

	a.addScaleFlags(cmd.Flags())
	return cmd
}

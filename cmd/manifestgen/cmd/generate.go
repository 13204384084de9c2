package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbar1/ssh-benchmark/internal/manifest"
	"github.com/pbar1/ssh-benchmark/internal/metrics"
	"github.com/pbar1/ssh-benchmark/internal/topology"
)

func generateCmd(a *app) *cobra.Command {
	var bundle string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render manifests into an output directory",
		Long: `Render manifests into an output directory, one file per object:

	ns.k8s.yaml, server-svc.k8s.yaml, server-sts.k8s.yaml,
	client-job-<N>.k8s.yaml per concurrency level and, for multi-container,
	client-svc.k8s.yaml.

Nothing is written unless the whole configuration is valid.`,
		Args: cobra.NoArgs,
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

			w, err := manifest.NewWriter(cfg.OutputDir, logger)
			if err != nil {
				return err
			}
			if bundle != "" {
				err = w.WriteBundle(bundle, out.Documents)
			} else {
				err = w.Write(out.Documents)
			}
			if err != nil {
				return err
			}

			logger.Info("Generated manifests",
				zap.String("strategy", cfg.Scale.Strategy.String()),
				zap.String("namespace", out.Plan.Namespace.Name),
				zap.Int32("replicas", out.Plan.Server.Replicas),
				zap.Int("service_ports", len(out.Plan.ServerService.Ports)),
				zap.Int("jobs", len(out.Plan.Workloads)),
			)

			if cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
					return err
				}
			}
			return nil
		},
	}

	a.addScaleFlags(cmd.Flags())
	cmd.Flags().String("out-dir", "", "output directory (default \"manifests\")")
	cmd.Flags().StringVar(&bundle, "bundle", "", "write a single multi-document file with this name instead")
	cmd.Flags().String("metrics-file", "", "write generation metrics in Prometheus text format to this file")
	a.flagKeys["out-dir"] = "outputDir"
	a.flagKeys["metrics-file"] = "metricsFile"

	return cmd
}

func logProblems(logger *zap.Logger, err error) {
	var cerr *topology.ConfigError
	if !errors.As(err, &cerr) {
		return
	}
	for _, p := range cerr.Problems() {
		logger.Error("invalid scale configuration", zap.String("problem", p))
	}
}

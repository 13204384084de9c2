package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pbar1/ssh-benchmark/internal/config"
	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// app carries the state shared by every sub-command of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	allTargets bool
	// flagKeys maps flag names to the configuration keys they override.
	flagKeys map[string]string
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	a := &app{
		v: config.New(),
		flagKeys: map[string]string{
			"log-level":  "logLevel",
			"log-format": "logFormat",
		},
	}

	cmd := &cobra.Command{
		Use:   "manifestgen",
		Short: "manifestgen renders Kubernetes manifests for ssh-benchmark topologies.",
		Long: `manifestgen renders a headless server StatefulSet and one client Job per
concurrency level for a chosen port-sharding strategy.

Configuration is read from flags, MANIFESTGEN_* environment variables and an
optional YAML file, in that order of precedence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug/info/warn/error)")
	cmd.PersistentFlags().String("log-format", "json", "log format (json/console)")

	cmd.AddCommand(
		generateCmd(a),
		validateCmd(a),
		serveCmd(a),
	)

	return cmd
}

// addScaleFlags registers the flags shared by generate and validate.
func (a *app) addScaleFlags(flags *pflag.FlagSet) {
	flags.String("strategy", "", "port-sharding strategy (single-container/multi-container/hybrid)")
	flags.String("namespace", "", "namespace of every rendered object")
	flags.Int32("replicas", 0, "server StatefulSet replicas")
	flags.Int32("ports", 0, "logical ports advertised by the server service")
	flags.Int32("containers", 0, "server containers per replica")
	flags.IntSlice("concurrency", nil, "concurrency levels, one client job each")
	flags.IntSlice("target-ordinals", nil, "server ordinals clients dial (all when empty)")
	flags.IntSlice("target-ports", nil, "service ports clients dial (all when empty)")
	flags.BoolVar(&a.allTargets, "all-targets", false, "dial every server ordinal and service port, ignoring target selections")
	flags.String("server-image", "", "server container image")
	flags.String("client-image", "", "client container image")
	flags.String("client-service-type", "", "client service type (NodePort/LoadBalancer)")

	for flag, key := range map[string]string{
		"strategy":            "scale.strategy",
		"namespace":           "scale.namespace",
		"replicas":            "scale.replicas",
		"ports":               "scale.ports",
		"containers":          "scale.containersPerReplica",
		"concurrency":         "scale.concurrencyLevels",
		"target-ordinals":     "scale.targets.ordinals",
		"target-ports":        "scale.targets.ports",
		"server-image":        "scale.server.image",
		"client-image":        "scale.client.image",
		"client-service-type": "scale.client.serviceType",
	} {
		a.flagKeys[flag] = key
	}
}

// load binds the flags given on the command line and loads the configuration. Flags
// left at their zero value never mask a default.
func (a *app) load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	var bindErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := a.flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, nil, fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return nil, nil, err
	}
	if a.allTargets {
		cfg.Scale.Targets = topology.TargetSelector{}
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.LogFormat == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return zcfg.Build(zap.Fields(zap.String("app", cfg.AppName)))
}

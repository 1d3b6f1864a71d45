package cli

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/nodedeployer/cfg"
	"github.com/maxpert/nodedeployer/deployer"
	"github.com/maxpert/nodedeployer/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func operationCmd(op deployer.Operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:          string(op),
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			return runOperation(cmd, op)
		},
	}
}

// setup loads the configuration and initializes logging and telemetry.
func setup() error {
	err := cfg.Load(configPath, cfg.Overrides{
		DataRoot:               dataRoot,
		ClusterManifest:        clusterManifest,
		InfrastructureManifest: infrastructureManifest,
		Nodes:                  nodes,
		Verbose:                verbose,
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging()
	telemetry.InitializeTelemetry()
	return nil
}

func setupLogging() {
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("deployer_id", cfg.Config.DeployerID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}
}

func newDeployer() (*deployer.Deployer, error) {
	c := cfg.Config
	return deployer.New(deployer.Options{
		DataRoot:           c.DataRoot,
		NodeVersion:        c.Deployment.NodeVersion,
		ServiceName:        c.Deployment.ServiceName,
		LockTimeout:        time.Duration(c.Deployment.LockTimeoutSeconds) * time.Second,
		DynamicParameters:  c.Delta.DynamicParameters,
		HistoryEnabled:     c.History.Enabled,
		HistoryMaxVersions: c.History.MaxVersions,
		CompressionLevel:   c.History.CompressionLevel,
	})
}

// parameters translates the loaded configuration and flags into the typed
// inputs of op.
func parameters(op deployer.Operation) deployer.Parameters {
	p := deployer.Parameters{
		Operation: op,
		Nodes:     cfg.Config.Deployment.Nodes,
	}
	switch op {
	case deployer.OpCreate, deployer.OpUpdate, deployer.OpValidate:
		p.ClusterManifestPath = cfg.Config.ClusterManifest
		p.InfrastructureManifestPath = cfg.Config.InfrastructureManifest
	}
	switch op {
	case deployer.OpValidate:
		p.CurrentManifestPath = currentManifest
		p.Nodes = nil
	case deployer.OpRemove:
		p.Purge = purge
	}
	return p
}

func runOperation(cmd *cobra.Command, op deployer.Operation) error {
	d, err := newDeployer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := d.Run(ctx, parameters(op))
	if werr := telemetry.WriteTextfile(cfg.Config.Prometheus.TextfilePath); werr != nil {
		log.Warn().Err(werr).Str("path", cfg.Config.Prometheus.TextfilePath).Msg("Failed to write metrics textfile")
	}
	if err != nil {
		log.Error().Err(err).Str("operation", string(op)).Msg("Operation failed")
		return err
	}

	event := log.Info().
		Str("operation", string(res.Operation)).
		Strs("nodes", res.Nodes).
		Uint64("version", res.Version)
	if res.Decision != nil {
		event = event.
			Str("outcome", res.Decision.Outcome.String()).
			Int("changes", len(res.Decision.Changes))
	}
	event.Msg("Operation completed")
	return nil
}

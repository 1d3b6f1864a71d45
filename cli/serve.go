package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/maxpert/nodedeployer/admin"
	"github.com/maxpert/nodedeployer/cfg"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Serve a read-only view of the deployment over HTTP",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(); err != nil {
			return err
		}

		d, err := newDeployer()
		if err != nil {
			return err
		}
		handlers, err := admin.NewAdminHandlers(d, cfg.Config.Admin.SettingsCacheSize)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := admin.NewServer(cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port, handlers)
		return server.Run(ctx)
	},
}

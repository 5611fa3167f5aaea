package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgevtt/forgesync/internal/config"
	"github.com/forgevtt/forgesync/internal/dataserver"
	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/version"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var host string
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local asset mirror over HTTP",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd.Root())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("forgesync", "version", version.Version, "revision", version.Revision)

			cfg := &config.Config{
				Path:      viper.ConfigFileUsed(),
				ServerURL: viper.GetString("server_url"),
				DataDir:   viper.GetString("data_dir"),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := datastore.NewLocalStore(cfg.MirrorDir())
			if err != nil {
				return err
			}

			serverCfg := dataserver.DefaultConfig()
			if host != "" {
				serverCfg.Host = host
			}
			if cmd.Flag("port").Changed {
				serverCfg.Port = port
			}

			defer slog.Info("Bye!")
			return dataserver.New(serverCfg, store).Start(cmd.Context())
		},
	}

	serveCmd.Flags().StringVarP(&host, "host", "H", "", "Address to bind")
	serveCmd.Flags().IntVarP(&port, "port", "p", dataserver.DefaultConfig().Port, "Port to bind")

	return serveCmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/gofrs/flock"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forgevtt/forgesync/internal/config"
	"github.com/forgevtt/forgesync/internal/utils"
	"github.com/forgevtt/forgesync/internal/version"
)

const configFileName = "config"

var home, _ = os.UserHomeDir()

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

// exitCode is set by the sync command from the terminal run status.
var exitCode int

var rootCmd = &cobra.Command{
	Use:     "forgesync",
	Short:   "Synchronize a remote asset library to a local mirror",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:      viper.ConfigFileUsed(),
			ServerURL: viper.GetString("server_url"),
			APIKey:    viper.GetString("api_key"),
			DataDir:   viper.GetString("data_dir"),
			UserID:    viper.GetString("user_id"),
			World:     viper.GetString("world"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader()

		// one sync per data directory at a time
		lock := flock.New(filepath.Join(cfg.DataDir, ".forgesync.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("run lock: %w", err)
		}
		if !locked {
			exitCode = 2
			return errors.New("another sync is already running for this data directory")
		}
		defer lock.Unlock()

		defer slog.Info("Bye!")
		return runSync(cmd.Context(), cmd, cfg)
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("key", "k", "", "Access key for the asset library")
	rootCmd.Flags().StringP("datadir", "d", filepath.Join(home, "forge-data"), "Host data directory")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Asset API server")
	rootCmd.Flags().StringP("user", "u", "", "Asset library account id")
	rootCmd.Flags().StringP("world", "w", "", "World to migrate after the sync")
	rootCmd.Flags().Bool("force-rehash", false, "Verify every local file by content hash")
	rootCmd.Flags().Bool("overwrite", false, "Overwrite locally modified files with the remote copy")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Config file")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		if exitCode == 0 {
			exitCode = 2
		}
	}
	os.Exit(exitCode)
}

func setupLogging() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(&lumberjack.Logger{
		Filename:   config.DefaultLogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}, &slog.HandlerOptions{Level: slog.LevelDebug})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".forgesync"))
		viper.AddConfigPath(filepath.Join(home, ".config/forgesync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("api_key", cmd.Flags().Lookup("key"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("user_id", cmd.Flags().Lookup("user"))
	viper.BindPFlag("world", cmd.Flags().Lookup("world"))

	viper.SetEnvPrefix("FORGESYNC")
	viper.AutomaticEnv()

	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("ForgeSync %s\n", version.Version)
}

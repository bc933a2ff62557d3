// warg is the registry client CLI: it drives package.client's
// synchronization, publish, and download operations from the shell,
// the way cmd/monitor drove the teacher's log verification loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wargproto/warg-go/internal/obs"
)

var (
	cfgFile         string
	flagURL         string
	flagData        string
	flagDebug       bool
	flagMetricsAddr string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "warg",
		Short:        "warg synchronizes and publishes against a transparency-log package registry",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.warg.yaml)")
	root.PersistentFlags().StringVar(&flagURL, "registry", "", "registry URL (overrides the configured default)")
	root.PersistentFlags().StringVar(&flagData, "data-dir", "", "directory holding cached registry and content state")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	cobra.OnInitialize(initConfig)

	root.AddCommand(newUpdateCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newDownloadCmd())
	root.AddCommand(newResetCmd())
	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".warg")
	}
	viper.SetEnvPrefix("WARG")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	if flagURL == "" {
		flagURL = viper.GetString("registry")
	}
	if flagData == "" {
		flagData = viper.GetString("data_dir")
		if flagData == "" {
			if home, err := os.UserHomeDir(); err == nil {
				flagData = home + "/.warg"
			}
		}
	}
}

func newLogger() *obs.Logger {
	var cfg zap.Config
	if flagDebug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return obs.NewNop()
	}
	return logger.Sugar()
}

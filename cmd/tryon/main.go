package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ayusman/tryon/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configPath string

	root := &cobra.Command{
		Use:   "tryon",
		Short: "Eyewear virtual try-on overlay service",
		Long: `TryOn tracks a face in a camera feed and publishes the transform that
places an eyewear overlay over the eyes. A browser renderer reads the
transform over HTTP or WebSocket.

Examples:
  tryon
  tryon serve --addr :9090 --backend mock
  tryon compute landmarks.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v, configPath)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	bindFlag(v, "log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newServeCmd(v, &configPath),
		newComputeCmd(v, &configPath),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tryon", version)
		},
	}
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		log.WithError(err).Fatalf("Failed to bind flag %s", key)
	}
}

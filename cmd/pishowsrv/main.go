package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jypelle/pishow/internal/srv"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const configSuffix = "pishow"

var (
	debugMode      bool
	simulationMode bool
	configDir      string
)

var rootCmd = &cobra.Command{
	Use:   "pishowsrv",
	Short: "An unattended projector playback server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			logrus.SetLevel(logrus.DebugLevel)
			logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
			logrus.Printf("Debug mode activated")
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		serverConfig := config.NewServerConfig(configDir, debugMode, simulationMode)
		setupLogFile(serverConfig)

		// Create pishow server
		serverApp, err := srv.NewServerApp(serverConfig)
		if err != nil {
			logrus.Fatalf("Unable to create server: %v", err)
		}

		// Listen stop signal
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

		serverApp.Start()

		sig := <-ch
		logrus.Infof("Received signal: %v", sig)
		serverApp.Stop()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version %s\n", version.AppVersion.String())
	},
}

func init() {
	// User config dir
	defaultConfigDir := "./." + configSuffix
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		defaultConfigDir = filepath.Join(userConfigDir, configSuffix)
	}

	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&simulationMode, "simulation", "s", false, "Enable simulation mode (no CEC or GPIO access)")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", defaultConfigDir, "Location of pishow config folder")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogFile copies logs to a rotated file when log.file is set.
func setupLogFile(serverConfig *config.ServerConfig) {
	filename := serverConfig.GetCompleteLogFilename()
	if filename == "" {
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    serverConfig.LogParam.MaxSizeMb,
		MaxBackups: serverConfig.LogParam.MaxBackups,
		MaxAge:     serverConfig.LogParam.MaxAgeDays,
		Compress:   serverConfig.LogParam.Compress,
	}))
}

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flexmocap/rigcore/internal/config"
)

var (
	configDir string
	logLevel  string
	quiet     bool

	rt *runtime
)

var rootCmd = &cobra.Command{
	Use:   "mocaprig",
	Short: "Build, fit and bind mocap skeletons from marker templates",
	Long: `mocaprig turns a joint template and a reference marker frame into a
characterized skeleton driven by the capture markers.

Templates are read from .ini/.cfg (key-value, centimeters) or .csv (tabular,
meters) files. Marker frames are CSV files with one "id,x,y,z" row per marker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if err := loadConfig(); err != nil {
			return err
		}
		var err error
		rt, err = newRuntime(cmd.Context(), cmd.ErrOrStderr())
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return nil
		}
		err := rt.Close(cmd.Context())
		rt = nil
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when present; defaults apply otherwise.
func loadConfig() error {
	err := config.Load(configDir)
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "no console logging")
}

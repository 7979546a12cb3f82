package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelajev/slowly-unhinged/cmd/companion/internal/config"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Hands-free backdrop companion",
	Long: `companion runs the hands-free backdrop agent: it reads hand-landmark
frames to drive the name dials, listens to the room in short clips, and
keeps a generated background image available to remote callers through a
public tunnel.

Commands:
  run      start the companion API, gesture loop, and session coordinator
  devices  list microphone capture sources
  config   show or change the stored configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
}

// newLogger builds the process logger. Verbose mode includes debug records.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads from the --config path when given, the default location
// otherwise.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

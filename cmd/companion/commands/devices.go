package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphone capture sources",
	Long: `Devices asks ffmpeg for the capture sources available on this
machine. Pick one and store it with:

  companion config set capture.input_device <name>`,
	RunE: listDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func listDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	binary := cfg.Capture.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	format := cfg.Capture.InputFormat
	if format == "" {
		switch runtime.GOOS {
		case "darwin":
			format = "avfoundation"
		case "windows":
			format = "dshow"
		default:
			format = "pulse"
		}
	}

	var ffmpegArgs []string
	switch format {
	case "avfoundation", "dshow":
		ffmpegArgs = []string{"-hide_banner", "-f", format, "-list_devices", "true", "-i", "dummy"}
	default:
		ffmpegArgs = []string{"-hide_banner", "-sources", format}
	}

	out, err := exec.CommandContext(cmd.Context(), binary, ffmpegArgs...).CombinedOutput()
	// Device listing modes exit non-zero on some platforms even on
	// success; the output is still what we want.
	if len(out) == 0 && err != nil {
		return fmt.Errorf("run %s: %w", binary, err)
	}

	fmt.Printf("capture format: %s\n\n%s", format, out)
	return nil
}

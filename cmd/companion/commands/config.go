package commands

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set stores one configuration value and writes the config file.

Keys:
  hub_url                matchmaking hub base URL
  dmr_base_url           Docker Model Runner base URL
  port                   local companion API port
  data_dir               key-value store directory
  capture.binary         ffmpeg executable
  capture.input_format   ffmpeg input demuxer (pulse, avfoundation, dshow)
  capture.input_device   capture source name`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "hub_url":
			cfg.HubURL = value
		case "dmr_base_url":
			cfg.DMRBaseURL = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("port must be a number: %w", err)
			}
			cfg.Port = port
		case "data_dir":
			cfg.DataDir = value
		case "capture.binary":
			cfg.Capture.Binary = value
		case "capture.input_format":
			cfg.Capture.InputFormat = value
		case "capture.input_device":
			cfg.Capture.InputDevice = value
		default:
			return fmt.Errorf("unknown config key %q", key)
		}

		if configPath != "" {
			return cfg.SaveTo(configPath)
		}
		return cfg.Save()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/DataLoomHQ/dataloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("base_url: %s\n", cfg.BaseURL)
		fmt.Printf("model: %s\n", cfg.Model)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("memory_dir: %s\n", cfg.MemoryDir)
		fmt.Printf("output_dir: %s\n", cfg.OutputDir)
		fmt.Printf("reports_dir: %s\n", cfg.ReportsDir)
		fmt.Printf("http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Printf("retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("log_json: %t\n", cfg.LogJSON)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "api_key":
			cfg.APIKey = val
		case "base_url":
			cfg.BaseURL = val
		case "model":
			cfg.Model = val
		case "temperature":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("temperature must be a number: %w", err)
			}
			cfg.Temperature = f
		case "max_tokens":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("max_tokens must be an integer: %w", err)
			}
			cfg.MaxTokens = n
		case "memory_dir":
			cfg.MemoryDir = val
		case "output_dir":
			cfg.OutputDir = val
		case "reports_dir":
			cfg.ReportsDir = val
		case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			switch key {
			case "http_timeout_sec":
				cfg.HTTPTimeoutSec = n
			case "retry_max_attempts":
				cfg.RetryMaxAttempts = n
			case "retry_base_delay_ms":
				cfg.RetryBaseDelayMs = n
			case "retry_max_delay_ms":
				cfg.RetryMaxDelayMs = n
			}
		case "log_level":
			cfg.LogLevel = val
		case "log_json":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("log_json must be true or false: %w", err)
			}
			cfg.LogJSON = b
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Printf("✓ %s updated\n", key)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with current defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("✓ Config written")
		return nil
	},
}

func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

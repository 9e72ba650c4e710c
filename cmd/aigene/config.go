package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/aigene/internal/secrets"
	"github.com/tsukumogami/aigene/internal/userconfig"
)

const secretPrefix = "secrets."

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage aigene configuration",
	Long: `Manage aigene configuration settings.

Configuration is stored in config.toml in the aigene home directory.
API keys can be set as secrets.<name>; environment variables take
precedence over stored keys.

Examples:
  aigene config get provider
  aigene config set provider qwen
  aigene config set secrets.deepseek_api_key sk-...
  aigene config list`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		cfg, err := userconfig.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		if name, ok := strings.CutPrefix(key, secretPrefix); ok {
			if _, err := secrets.Lookup(cfg, name); err != nil {
				fmt.Println("(not set)")
				return
			}
			fmt.Println("(set)")
			return
		}

		value, ok := cfg.Get(key)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
			fmt.Fprintf(os.Stderr, "\nAvailable keys:\n")
			printAvailableKeys()
			exitWithCode(ExitUsage)
		}

		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Examples:
  aigene config set provider claude
  aigene config set mirrors https://pypi.tuna.tsinghua.edu.cn/simple/,https://pypi.org/simple/
  aigene config set update_check false`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		cfg, err := userconfig.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		display := value
		if name, ok := strings.CutPrefix(key, secretPrefix); ok {
			if err := setSecret(cfg, name, value); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitWithCode(ExitUsage)
			}
			display = "********"
		} else if err := cfg.Set(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "\nAvailable keys:\n")
			printAvailableKeys()
			exitWithCode(ExitUsage)
		}

		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			exitWithCode(ExitGeneral)
		}
		secrets.ResetConfig()

		fmt.Printf("%s = %s\n", key, display)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values and API key status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := userconfig.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		for _, k := range sortedKeys(userconfig.AvailableKeys()) {
			v, _ := cfg.Get(k)
			fmt.Printf("%-24s %s\n", k, v)
		}
		fmt.Println()
		for _, info := range secrets.KnownKeys() {
			status := "not set"
			if _, err := secrets.Lookup(cfg, info.Name); err == nil {
				status = "set"
			}
			fmt.Printf("%-24s %-8s %s\n", secretPrefix+info.Name, status, info.Desc)
		}
	},
}

func setSecret(cfg *userconfig.Config, name, value string) error {
	known := false
	for _, info := range secrets.KnownKeys() {
		if info.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown secret: %s", name)
	}
	if cfg.Secrets == nil {
		cfg.Secrets = make(map[string]string)
	}
	if value == "" {
		delete(cfg.Secrets, name)
		return nil
	}
	cfg.Secrets[name] = value
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printAvailableKeys() {
	keys := userconfig.AvailableKeys()
	for _, k := range sortedKeys(keys) {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", k, keys[k])
	}
	fmt.Fprintf(os.Stderr, "  %s<name> - API key (see 'aigene config list')\n", secretPrefix)
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}

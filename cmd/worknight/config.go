package main

import (
	_ "embed"
	"fmt"
	"worknight/lib/configstore"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfig []byte

func openStore() (*configstore.Store, error) {
	userPath, err := configstore.DefaultUserPath()
	if err != nil {
		return nil, fmt.Errorf("resolve user configuration path: %w", err)
	}
	return configstore.Load(defaultConfig, userPath)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Reads and writes the worknight configuration.",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>...",
	Short: "Prints the effective value at the given key path.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		value, err := store.Get(args...)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	},
}

var configSetParents []string

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Sets a configuration value, nested under any --parent keys.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		path := append(append([]string{}, configSetParents...), args[0])
		if err := store.Set(path, parseScalar(args[1])); err != nil {
			return err
		}
		return store.Save()
	},
}

// parseScalar types a command-line value the way a YAML document would:
// "true" becomes a boolean, "8" an integer, anything else a string.
func parseScalar(raw string) any {
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	switch value.(type) {
	case bool, int, float64, string:
		return value
	default:
		return raw
	}
}

func init() {
	configSetCmd.Flags().StringArrayVar(&configSetParents, "parent", nil,
		"Parent key to nest under; repeat for deeper paths.")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

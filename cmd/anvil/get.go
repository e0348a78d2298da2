package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jbweber/anvil/internal/config"
)

var getConfigCmd = &cobra.Command{
	Use:   "get-config",
	Short: "Show the current config",
	Long:  `Show the merged configuration: built-in defaults and presets overlaid with the config file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return err
		}

		out, err := cfg.YAML()
		if err != nil {
			return err
		}

		fmt.Print(out)
		return nil
	},
}

// domainPresetInfo is one row of get-domain-presets output.
type domainPresetInfo struct {
	PresetName  string `json:"preset-name" yaml:"preset-name"`
	MachineType string `json:"machine-type" yaml:"machine-type"`
}

var getDomainPresetsCmd = &cobra.Command{
	Use:   "get-domain-presets",
	Short: "List all domain presets",
	Long:  `List all configured domain presets grouped by architecture.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return err
		}

		result := make(map[string][]domainPresetInfo)
		for name, preset := range cfg.Preset.Domain {
			result[preset.ArchName] = append(result[preset.ArchName], domainPresetInfo{
				PresetName:  name,
				MachineType: preset.MachineType,
			})
		}
		for _, presets := range result {
			sort.Slice(presets, func(i, j int) bool {
				return presets[i].PresetName < presets[j].PresetName
			})
		}

		return printResult(result)
	},
}

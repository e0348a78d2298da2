package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/anvil/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configFile   string
	socketPath   string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "Anvil - libvirt instance provisioning tool",
	Long: `Anvil creates libvirt virtual machines from presets defined in a
YAML configuration file.

A create run provisions the storage volumes, optionally builds a cloud-init
NoCloud seed image, assembles the domain XML from a domain preset, and
defines the domain on the hypervisor.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "/etc/anvil-config.yaml", "location of the configuration file")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "libvirt daemon socket path (default /var/run/libvirt/libvirt-sock)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output-format", "json", "output format (json, yaml)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(getConfigCmd)
	rootCmd.AddCommand(getDomainPresetsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func printResult(data any) error {
	out, err := output.Formatted(data, output.Format(outputFormat))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jbweber/anvil/internal/cloudinit"
	"github.com/jbweber/anvil/internal/config"
	"github.com/jbweber/anvil/internal/libvirt"
	"github.com/jbweber/anvil/internal/units"
	"github.com/jbweber/anvil/internal/vm"
)

var createFlags struct {
	memory       string
	vcpu         uint
	disks        []string
	nics         []string
	domainPreset string
	cpuModel     string
	archName     string
	machineType  string
	domainType   string

	cloudSeedDisk          string
	cloudUserDataFile      string
	cloudNetworkConfigFile string
	cloudSSHKeys           []string
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a VM",
	Long: `Create a virtual machine from a domain preset.

Disks and network interfaces are given as comma-separated spec strings
referring to presets from the configuration file:

  anvil create vm0 --memory 2GiB --vcpu 2 \
    --disk "local,10GiB,boot-order=1" \
    --nic "lan" \
    --cloud-seed-disk "local" \
    --cloud-user-data-file user-data.yaml

The command prints the instance id of the new VM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(cmd.Context(), args[0])
	},
}

func init() {
	f := createCmd.Flags()

	f.StringVar(&createFlags.memory, "memory", "", "amount of memory to allocate, e.g. 2GiB")
	f.UintVar(&createFlags.vcpu, "vcpu", 0, "number of vCPUs to configure")
	f.StringArrayVar(&createFlags.disks, "disk", nil, `comma-separated disk spec; format is: "preset-name,size,key=value,..."`)
	f.StringArrayVar(&createFlags.nics, "nic", nil, `comma-separated network interface spec; format is: "preset-name,key=value,..."`)
	f.StringVar(&createFlags.domainPreset, "domain-preset", "", "domain preset name in the config file to use")
	f.StringVar(&createFlags.cpuModel, "cpu-model", "", "virtual CPU model; defaults to host passthrough when not set")
	f.StringVar(&createFlags.archName, "arch-name", "", "architecture name")
	f.StringVar(&createFlags.machineType, "machine-type", "", "virtual hardware model")
	f.StringVar(&createFlags.domainType, "domain-type", "", "libvirt domain type, e.g. kvm, or qemu")

	f.StringVar(&createFlags.cloudSeedDisk, "cloud-seed-disk", "", `comma-separated cloud seed disk spec; format is: "preset-name,key=value,..."`)
	f.StringVar(&createFlags.cloudUserDataFile, "cloud-user-data-file", "", "location of the cloud-init user-data file; needs --cloud-seed-disk")
	f.StringVar(&createFlags.cloudNetworkConfigFile, "cloud-network-config-file", "", "location of the cloud-init network-config file; needs --cloud-seed-disk")
	f.StringArrayVar(&createFlags.cloudSSHKeys, "cloud-ssh-key", nil, "SSH public key to authorize via cloud-init; needs --cloud-seed-disk")

	_ = createCmd.MarkFlagRequired("memory")
	_ = createCmd.MarkFlagRequired("vcpu")
}

func runCreate(ctx context.Context, name string) error {
	memoryBytes, err := units.ParseSize(createFlags.memory)
	if err != nil {
		return fmt.Errorf("invalid --memory value: %w", err)
	}

	req := vm.CreateRequest{
		Name:         name,
		InstanceID:   uuid.New().String(),
		MemoryBytes:  memoryBytes,
		VCPUs:        createFlags.vcpu,
		DomainPreset: createFlags.domainPreset,
		DomainType:   createFlags.domainType,
		CPUModel:     createFlags.cpuModel,
		ArchName:     createFlags.archName,
		MachineType:  createFlags.machineType,
	}

	for _, spec := range createFlags.disks {
		dr, err := parseDiskSpec(spec)
		if err != nil {
			return err
		}
		req.Disks = append(req.Disks, dr)
	}

	for _, spec := range createFlags.nics {
		nr, err := parseNICSpec(spec)
		if err != nil {
			return err
		}
		req.NICs = append(req.NICs, nr)
	}

	seed, err := buildSeedRequest()
	if err != nil {
		return err
	}
	req.Seed = seed

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	client, err := libvirt.ConnectWithContext(ctx, socketPath, 0)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := vm.CreateInstance(ctx, client.Libvirt(), cfg, req); err != nil {
		return err
	}

	return printResult(map[string]string{"instance-id": req.InstanceID})
}

// buildSeedRequest assembles the cloud-init seed disk request from the
// cloud-* flags, validating their combinations.
func buildSeedRequest() (*vm.SeedRequest, error) {
	if createFlags.cloudSeedDisk == "" {
		for flag, set := range map[string]bool{
			"--cloud-user-data-file":      createFlags.cloudUserDataFile != "",
			"--cloud-network-config-file": createFlags.cloudNetworkConfigFile != "",
			"--cloud-ssh-key":             len(createFlags.cloudSSHKeys) > 0,
		} {
			if set {
				return nil, fmt.Errorf("%s requires --cloud-seed-disk", flag)
			}
		}
		return nil, nil
	}

	seed, err := parseSeedSpec(createFlags.cloudSeedDisk)
	if err != nil {
		return nil, err
	}

	if createFlags.cloudUserDataFile != "" && len(createFlags.cloudSSHKeys) > 0 {
		return nil, fmt.Errorf("--cloud-user-data-file and --cloud-ssh-key are mutually exclusive")
	}

	switch {
	case createFlags.cloudUserDataFile != "":
		body, err := os.ReadFile(createFlags.cloudUserDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read user-data file: %w", err)
		}
		seed.UserData = string(body)
	case len(createFlags.cloudSSHKeys) > 0:
		body, err := cloudinit.AuthorizedKeysUserData(createFlags.cloudSSHKeys)
		if err != nil {
			return nil, err
		}
		seed.UserData = body
	}

	if createFlags.cloudNetworkConfigFile != "" {
		body, err := os.ReadFile(createFlags.cloudNetworkConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read network-config file: %w", err)
		}
		seed.NetworkConfig = string(body)
	}

	return &seed, nil
}

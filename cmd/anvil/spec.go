package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jbweber/anvil/internal/units"
	"github.com/jbweber/anvil/internal/vm"
)

// parseSpec splits a comma-separated spec string into positional values and
// key=value pairs, e.g. "local,10GiB,bus=scsi" → ["local" "10GiB"],
// {bus: scsi}.
func parseSpec(spec string) ([]string, map[string]string) {
	var args []string
	kwargs := make(map[string]string)

	if spec == "" {
		return args, kwargs
	}

	for _, item := range strings.Split(spec, ",") {
		key, value, found := strings.Cut(item, "=")
		if found {
			kwargs[key] = value
		} else {
			args = append(args, item)
		}
	}

	return args, kwargs
}

// parseDiskSpec parses one --disk argument: "preset-name,size,key=value,...".
func parseDiskSpec(spec string) (vm.DiskRequest, error) {
	args, kwargs := parseSpec(spec)

	if len(args) != 2 {
		return vm.DiskRequest{}, fmt.Errorf("disk spec must specify a preset name and a size, got %q", spec)
	}

	size, err := units.ParseSize(args[1])
	if err != nil {
		return vm.DiskRequest{}, fmt.Errorf("disk spec %q: %w", spec, err)
	}

	dr := vm.DiskRequest{
		Preset:    args[0],
		SizeBytes: size,
	}

	for key, value := range kwargs {
		switch key {
		case "pool":
			dr.Pool = value
		case "bus":
			dr.Bus = value
		case "cache":
			dr.Cache = value
		case "source":
			dr.Source = value
		case "source-pool":
			dr.SourcePool = value
		case "boot-order":
			order, err := parseOrder(value)
			if err != nil {
				return vm.DiskRequest{}, fmt.Errorf("disk spec %q: %w", spec, err)
			}
			dr.BootOrder = order
		default:
			return vm.DiskRequest{}, fmt.Errorf("disk spec %q: unknown key %q", spec, key)
		}
	}

	return dr, nil
}

// parseNICSpec parses one --nic argument: "preset-name,key=value,...".
func parseNICSpec(spec string) (vm.NICRequest, error) {
	args, kwargs := parseSpec(spec)

	if len(args) != 1 {
		return vm.NICRequest{}, fmt.Errorf("nic spec must specify a preset name, got %q", spec)
	}

	nr := vm.NICRequest{Preset: args[0]}

	for key, value := range kwargs {
		switch key {
		case "model-type":
			nr.ModelType = value
		case "network":
			nr.Network = value
		case "bridge":
			nr.Bridge = value
		case "mac-address":
			nr.MACAddress = value
		case "boot-order":
			order, err := parseOrder(value)
			if err != nil {
				return vm.NICRequest{}, fmt.Errorf("nic spec %q: %w", spec, err)
			}
			nr.BootOrder = order
		case "mtu":
			mtu, err := parseOrder(value)
			if err != nil {
				return vm.NICRequest{}, fmt.Errorf("nic spec %q: %w", spec, err)
			}
			nr.MTU = mtu
		default:
			return vm.NICRequest{}, fmt.Errorf("nic spec %q: unknown key %q", spec, key)
		}
	}

	return nr, nil
}

// parseSeedSpec parses the --cloud-seed-disk argument:
// "preset-name,key=value,...".
func parseSeedSpec(spec string) (vm.SeedRequest, error) {
	args, kwargs := parseSpec(spec)

	if len(args) != 1 {
		return vm.SeedRequest{}, fmt.Errorf("cloud seed disk spec must specify a preset name, got %q", spec)
	}

	sr := vm.SeedRequest{Preset: args[0]}

	for key, value := range kwargs {
		switch key {
		case "pool":
			sr.Pool = value
		case "bus":
			sr.Bus = value
		case "cache":
			sr.Cache = value
		default:
			return vm.SeedRequest{}, fmt.Errorf("cloud seed disk spec %q: unknown key %q", spec, key)
		}
	}

	return sr, nil
}

func parseOrder(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint(n), nil
}

// Package config loads the VM subsystem's boot configuration from YAML,
// the harness's equivalent of the fixed compile-time parameters
// (mappings, pages, frames, pagers) the original USLOSS assignment passed
// to P3_VmInit directly.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/// DiskGeometry describes the simulated swap disk's fixed layout, queried
/// at init in the real design but supplied here as boot config for the
/// harness's simulated disk.
type DiskGeometry struct {
	SectorSize      int `yaml:"sectorSize"`
	SectorsPerTrack int `yaml:"sectorsPerTrack"`
	Tracks          int `yaml:"tracks"`
}

/// VM holds the VmInit parameters plus disk geometry.
type VM struct {
	Mappings int          `yaml:"mappings"`
	Pages    int          `yaml:"pages"`
	Frames   int          `yaml:"frames"`
	Pagers   int          `yaml:"pagers"`
	PageSize int          `yaml:"pageSize"`
	Disk     DiskGeometry `yaml:"disk"`
	Debug    bool         `yaml:"debug"`
}

/// Default returns the harness's baked-in configuration, used when no
/// config file is supplied.
func Default() VM {
	return VM{
		Mappings: 4,
		Pages:    4,
		Frames:   4,
		Pagers:   2,
		PageSize: 4096,
		Disk: DiskGeometry{
			SectorSize:      512,
			SectorsPerTrack: 8,
			Tracks:          64,
		},
	}
}

/// Load reads and parses a VM boot-config document from path.
func Load(path string) (VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VM{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return VM{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

package zone

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/journeywatch/internal/model"
)

// Zones is the on-disk zone file layout.
type Zones struct {
	Safe   []GeoZone `yaml:"safe_zones"`
	Unsafe []GeoZone `yaml:"unsafe_zones"`
}

// DefaultZones is used when no zone file is configured.
var DefaultZones = Zones{
	Safe: []GeoZone{
		{Name: "university", Center: model.Location{Lat: 23.02, Lng: 72.57}, RadiusM: 1000},
		{Name: "shopping_mall", Center: model.Location{Lat: 23.03, Lng: 72.58}, RadiusM: 500},
	},
	Unsafe: []GeoZone{
		{Name: "industrial_area", Center: model.Location{Lat: 23.05, Lng: 72.60}, RadiusM: 800},
	},
}

// Load reads zones from a YAML file.
// Empty path falls back to ~/.journeywatch/zones.yaml.
// Missing file returns DefaultZones. Invalid YAML or zones return an error.
func Load(path string) (Zones, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultZones, nil
		}
		path = filepath.Join(home, ".journeywatch", "zones.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultZones, nil
		}
		return Zones{}, fmt.Errorf("zone: read %s: %w", path, err)
	}

	var z Zones
	if err := yaml.Unmarshal(data, &z); err != nil {
		return Zones{}, fmt.Errorf("zone: parse %s: %w", path, err)
	}
	if err := z.validate(); err != nil {
		return Zones{}, fmt.Errorf("zone: %s: %w", path, err)
	}
	return z, nil
}

func (z Zones) validate() error {
	for _, list := range [][]GeoZone{z.Safe, z.Unsafe} {
		for _, g := range list {
			if g.RadiusM <= 0 {
				return fmt.Errorf("zone %q: radius_m must be positive", g.Name)
			}
			if g.Center.Lat < -90 || g.Center.Lat > 90 || g.Center.Lng < -180 || g.Center.Lng > 180 {
				return fmt.Errorf("zone %q: center out of range", g.Name)
			}
		}
	}
	return nil
}

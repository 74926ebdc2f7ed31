package zone

import (
	"math"

	"github.com/ppiankov/journeywatch/internal/model"
)

// EarthRadiusM is the mean Earth radius used for great-circle distance.
const EarthRadiusM = 6_371_000.0

// IsolationRadiusM is how close a safe zone must be for a point to not be isolated.
const IsolationRadiusM = 2_000.0

// Kind tags a zone as safe or unsafe.
type Kind string

const (
	Safe   Kind = "safe"
	Unsafe Kind = "unsafe"
)

// GeoZone is a named circular area.
type GeoZone struct {
	Name    string         `yaml:"name"     json:"name"`
	Center  model.Location `yaml:"center"   json:"center"`
	RadiusM float64        `yaml:"radius_m" json:"radius_m"`
	Kind    Kind           `yaml:"-"        json:"kind"`
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b model.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

// Classifier answers proximity queries against a fixed zone list.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	safe   []GeoZone
	unsafe []GeoZone
}

// NewClassifier builds a Classifier from zone definitions.
func NewClassifier(zones Zones) *Classifier {
	c := &Classifier{
		safe:   make([]GeoZone, len(zones.Safe)),
		unsafe: make([]GeoZone, len(zones.Unsafe)),
	}
	copy(c.safe, zones.Safe)
	copy(c.unsafe, zones.Unsafe)
	for i := range c.safe {
		c.safe[i].Kind = Safe
	}
	for i := range c.unsafe {
		c.unsafe[i].Kind = Unsafe
	}
	return c
}

// IsIsolated returns true if no safe zone center lies within IsolationRadiusM.
// Unsafe zones are not consulted.
func (c *Classifier) IsIsolated(p model.Location) bool {
	for _, z := range c.safe {
		if Distance(p, z.Center) <= IsolationRadiusM {
			return false
		}
	}
	return true
}

// IsNearUnsafeZone returns true if p lies within any unsafe zone's radius.
func (c *Classifier) IsNearUnsafeZone(p model.Location) bool {
	_, ok := c.firstContaining(c.unsafe, p)
	return ok
}

// Proximity summarizes how a point relates to the configured zones.
type Proximity struct {
	Isolated        bool     `json:"isolated"`
	NearUnsafeZone  bool     `json:"near_unsafe_zone"`
	UnsafeZone      string   `json:"unsafe_zone,omitempty"`
	NearestSafe     string   `json:"nearest_safe,omitempty"`
	NearestSafeDist *float64 `json:"nearest_safe_distance_m,omitempty"`
}

// Check reports the proximity of p, including the nearest safe zone.
func (c *Classifier) Check(p model.Location) Proximity {
	prox := Proximity{
		Isolated: c.IsIsolated(p),
	}
	if z, ok := c.firstContaining(c.unsafe, p); ok {
		prox.NearUnsafeZone = true
		prox.UnsafeZone = z.Name
	}
	for _, z := range c.safe {
		d := Distance(p, z.Center)
		if prox.NearestSafeDist == nil || d < *prox.NearestSafeDist {
			prox.NearestSafe = z.Name
			prox.NearestSafeDist = &d
		}
	}
	return prox
}

// All returns every configured zone, safe zones first.
func (c *Classifier) All() []GeoZone {
	out := make([]GeoZone, 0, len(c.safe)+len(c.unsafe))
	out = append(out, c.safe...)
	return append(out, c.unsafe...)
}

func (c *Classifier) firstContaining(zones []GeoZone, p model.Location) (GeoZone, bool) {
	for _, z := range zones {
		if Distance(p, z.Center) <= z.RadiusM {
			return z, true
		}
	}
	return GeoZone{}, false
}

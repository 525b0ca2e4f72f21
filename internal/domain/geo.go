package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BasinMap maps a river or tributary name to the basin it drains into.
type BasinMap map[string]string

// LoadBasinMap reads a basin map from a JSON or YAML file.
func LoadBasinMap(path string) (BasinMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read basin map: %w", err)
	}
	m, err := ParseBasinMap(data)
	if err != nil {
		return nil, fmt.Errorf("basin map %s: %w", path, err)
	}
	return m, nil
}

// ParseBasinMap decodes a flat key/value document. JSON objects are decoded
// strictly; anything else goes through the YAML decoder.
func ParseBasinMap(data []byte) (BasinMap, error) {
	var m BasinMap
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(m) == 0 {
		return nil, errors.New("basin map is empty")
	}
	return m, nil
}

// StationOverride forces the river recorded for a gauging station. The source
// report is known to list some stations against the wrong tributary.
type StationOverride struct {
	Station string
	River   string
}

// DefaultStationOverrides are the corrections applied when none are configured.
var DefaultStationOverrides = []StationOverride{
	{Station: "Yaka Wewa", River: "Mukunu Oya"},
}

// GeoMapper resolves river basins and applies station-level river corrections.
type GeoMapper struct {
	basins    BasinMap
	folded    map[string]string
	overrides map[string]string
}

// NewGeoMapper builds a mapper over basins. A nil overrides slice means
// DefaultStationOverrides.
func NewGeoMapper(basins BasinMap, overrides []StationOverride) *GeoMapper {
	if overrides == nil {
		overrides = DefaultStationOverrides
	}
	g := &GeoMapper{
		basins:    basins,
		folded:    make(map[string]string, len(basins)),
		overrides: make(map[string]string, len(overrides)),
	}
	for k, v := range basins {
		fk := foldKey(k)
		if _, dup := g.folded[fk]; !dup {
			g.folded[fk] = v
		}
	}
	for _, o := range overrides {
		g.overrides[strings.TrimSpace(o.Station)] = o.River
	}
	return g
}

// CorrectRiver returns the river to record for a row. When the station has an
// override the source river is ignored and overridden is true.
func (g *GeoMapper) CorrectRiver(station, river string) (corrected string, overridden bool) {
	if r, ok := g.overrides[strings.TrimSpace(station)]; ok {
		return r, true
	}
	return strings.TrimSpace(river), false
}

// RiverBasin looks river up exactly as written.
func (g *GeoMapper) RiverBasin(river string) (string, bool) {
	river = strings.TrimSpace(river)
	if river == "" {
		return "", false
	}
	b, ok := g.basins[river]
	return b, ok
}

// FoldedRiverBasin looks river up ignoring case and repeated spaces. Callers
// use it only after RiverBasin misses and report the loose match.
func (g *GeoMapper) FoldedRiverBasin(river string) (string, bool) {
	key := foldKey(river)
	if key == "" {
		return "", false
	}
	b, ok := g.folded[key]
	return b, ok
}

// Len reports the number of basin entries.
func (g *GeoMapper) Len() int { return len(g.basins) }

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

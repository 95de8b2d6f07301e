// Package village implements the terminal fallback tier: distance-weighted
// nutrient estimates from a static soil survey dataset, no satellite access.
package village

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Record is one surveyed village with observed nutrient values. Macro
// nutrients are kg/ha, SOC is percent, micronutrients are ppm. The dataset is
// loaded once at startup and never mutated.
type Record struct {
	Name     string  `yaml:"name"`
	District string  `yaml:"district,omitempty"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`

	Nitrogen   float64 `yaml:"nitrogen"`
	Phosphorus float64 `yaml:"phosphorus"`
	Potassium  float64 `yaml:"potassium"`
	SOC        float64 `yaml:"soc"`

	Boron  *float64 `yaml:"boron,omitempty"`
	Iron   *float64 `yaml:"iron,omitempty"`
	Zinc   *float64 `yaml:"zinc,omitempty"`
	SoilPH *float64 `yaml:"soil_ph,omitempty"`
}

type datasetFile struct {
	Villages []Record `yaml:"villages"`
}

// LoadDataset reads the survey dataset from a YAML file and validates every
// record. An empty dataset is returned as-is; callers decide whether that is
// acceptable.
func LoadDataset(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read village dataset: %w", err)
	}

	var file datasetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse village dataset %s: %w", path, err)
	}

	for i, r := range file.Villages {
		if r.Name == "" {
			return nil, fmt.Errorf("village dataset %s: record %d has no name", path, i)
		}
		if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
			return nil, fmt.Errorf("village dataset %s: record %q has out-of-range coordinates", path, r.Name)
		}
	}
	return file.Villages, nil
}

package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type calibrationFile struct {
	Districts []DistrictCalibration `yaml:"districts"`
}

// LoadCalibrations reads the district calibration layer from a YAML file.
// An empty path is valid and yields no calibrations.
func LoadCalibrations(path string) ([]DistrictCalibration, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var f calibrationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse calibration file %s: %w", path, err)
	}

	for i, d := range f.Districts {
		if d.District == "" {
			return nil, fmt.Errorf("calibration entry %d: missing district name", i)
		}
		if d.MinLat >= d.MaxLat || d.MinLon >= d.MaxLon {
			return nil, fmt.Errorf("calibration for district %q: degenerate bounds", d.District)
		}
		if d.Nitrogen <= 0 || d.Phosphorus <= 0 || d.Potassium <= 0 || d.SOC <= 0 {
			return nil, fmt.Errorf("calibration for district %q: multipliers must be positive", d.District)
		}
	}
	return f.Districts, nil
}

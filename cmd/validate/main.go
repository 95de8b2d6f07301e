// Command validate performs integrity checks on the deployment datasets: the
// village survey YAML and the optional district calibration YAML. It verifies
// value plausibility, duplicate entries, spatial coverage, and that every
// calibrated district actually contains surveyed villages.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -villages data/villages.yaml \
//	  -calibration data/calibration.yaml
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/village"
)

// India's bounding box, generously padded. Villages outside it are almost
// certainly coordinate transcription errors.
const (
	minIndiaLat = 6.0
	maxIndiaLat = 37.5
	minIndiaLon = 68.0
	maxIndiaLon = 97.5
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	villagesPath := flag.String("villages", "data/villages.yaml", "path to the village survey YAML")
	calibrationPath := flag.String("calibration", "", "path to the district calibration YAML (optional)")
	flag.Parse()

	if code := run(*villagesPath, *calibrationPath); code != 0 {
		os.Exit(code)
	}
}

func run(villagesPath, calibrationPath string) int {
	fmt.Println("=== Soil Dataset Integrity Validation ===")
	fmt.Println()

	records, err := village.LoadDataset(villagesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load village dataset: %v\n", err)
		return 1
	}
	fmt.Printf("loaded %d villages from %s\n", len(records), villagesPath)

	districts, err := domain.LoadCalibrations(calibrationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load calibrations: %v\n", err)
		return 1
	}
	if calibrationPath != "" {
		fmt.Printf("loaded %d district calibrations from %s\n", len(districts), calibrationPath)
	}

	phases := []*phase{
		validateValueRanges(records),
		validateDuplicates(records),
		validateCoverage(records),
	}
	if len(districts) > 0 {
		phases = append(phases, validateCalibrationAlignment(records, districts))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	if !allPassed {
		for _, p := range phases {
			for _, e := range p.errors {
				fmt.Printf("  [%s] %s\n", p.name, e)
			}
		}
		return 1
	}
	fmt.Println("all checks passed")
	return 0
}

// validateValueRanges checks every nutrient value against soil-health-card
// plausibility bounds.
func validateValueRanges(records []village.Record) *phase {
	p := &phase{name: "value ranges"}
	for _, r := range records {
		if r.Nitrogen < 0 || r.Nitrogen > 1000 {
			p.errorf("%s: nitrogen %.1f kg/ha out of range [0, 1000]", r.Name, r.Nitrogen)
		}
		if r.Phosphorus < 0 || r.Phosphorus > 200 {
			p.errorf("%s: phosphorus %.1f kg/ha out of range [0, 200]", r.Name, r.Phosphorus)
		}
		if r.Potassium < 0 || r.Potassium > 1000 {
			p.errorf("%s: potassium %.1f kg/ha out of range [0, 1000]", r.Name, r.Potassium)
		}
		if r.SOC < 0 || r.SOC > 5 {
			p.errorf("%s: SOC %.2f%% out of range [0, 5]", r.Name, r.SOC)
		}
		if r.SoilPH != nil && (*r.SoilPH < 3 || *r.SoilPH > 10) {
			p.errorf("%s: soil pH %.1f out of range [3, 10]", r.Name, *r.SoilPH)
		}
		for label, v := range map[string]*float64{"boron": r.Boron, "iron": r.Iron, "zinc": r.Zinc} {
			if v != nil && *v < 0 {
				p.errorf("%s: %s is negative", r.Name, label)
			}
		}
	}
	return p
}

// validateDuplicates flags repeated (district, name) pairs, which would skew
// the inverse-distance weighting.
func validateDuplicates(records []village.Record) *phase {
	p := &phase{name: "duplicate villages"}
	seen := map[string]bool{}
	for _, r := range records {
		key := r.District + "/" + r.Name
		if seen[key] {
			p.errorf("duplicate entry: %s", key)
		}
		seen[key] = true
	}
	return p
}

// validateCoverage checks that all villages fall inside India's bounding box.
func validateCoverage(records []village.Record) *phase {
	p := &phase{name: "spatial coverage"}
	for _, r := range records {
		if r.Lat < minIndiaLat || r.Lat > maxIndiaLat || r.Lon < minIndiaLon || r.Lon > maxIndiaLon {
			p.errorf("%s: (%.4f, %.4f) outside India bounds", r.Name, r.Lat, r.Lon)
		}
	}
	return p
}

// validateCalibrationAlignment checks that every calibrated district bounding
// box contains at least one surveyed village.
func validateCalibrationAlignment(records []village.Record, districts []domain.DistrictCalibration) *phase {
	p := &phase{name: "calibration alignment"}
	for _, d := range districts {
		found := 0
		for _, r := range records {
			if r.Lat >= d.MinLat && r.Lat <= d.MaxLat && r.Lon >= d.MinLon && r.Lon <= d.MaxLon {
				found++
			}
		}
		if found == 0 {
			p.errorf("district %q has no surveyed villages inside its bounds", d.District)
		}
	}
	return p
}

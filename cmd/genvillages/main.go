// Command genvillages converts soil-health-card survey exports (CSV) into the
// YAML village dataset consumed by the service. It uses the actual village
// package types so the generated file always matches loader expectations.
//
// Usage:
//
//	go run ./cmd/genvillages \
//	  -csv soil_health_cards_kanker.csv \
//	  -out data/villages.yaml
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zumagro/soil-nutrient-service/internal/village"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "soil health card CSV export")
	outPath := flag.String("out", "data/villages.yaml", "output path for the YAML dataset")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	records, skipped, err := readSurveyCSV(*csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *csvPath, err)
	}
	if skipped > 0 {
		log.Printf("skipped %d malformed rows", skipped)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].District != records[j].District {
			return records[i].District < records[j].District
		}
		return records[i].Name < records[j].Name
	})

	if err := writeDataset(*outPath, records); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	log.Printf("wrote %d villages: %s", len(records), *outPath)
	return nil
}

func readSurveyCSV(path string) ([]village.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"village", "lat", "lon", "nitrogen", "phosphorus", "potassium", "soc"} {
		if _, ok := colIdx[required]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", required)
		}
	}

	var records []village.Record
	skipped := 0
	for _, row := range rows[1:] {
		rec, ok := recordFromRow(row, colIdx)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func recordFromRow(row []string, colIdx map[string]int) (village.Record, bool) {
	name := get(row, colIdx, "village")
	lat, errLat := strconv.ParseFloat(get(row, colIdx, "lat"), 64)
	lon, errLon := strconv.ParseFloat(get(row, colIdx, "lon"), 64)
	if name == "" || errLat != nil || errLon != nil {
		return village.Record{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return village.Record{}, false
	}

	rec := village.Record{
		Name:       name,
		District:   get(row, colIdx, "district"),
		Lat:        lat,
		Lon:        lon,
		Nitrogen:   parseFloatOrZero(get(row, colIdx, "nitrogen")),
		Phosphorus: parseFloatOrZero(get(row, colIdx, "phosphorus")),
		Potassium:  parseFloatOrZero(get(row, colIdx, "potassium")),
		SOC:        parseFloatOrZero(get(row, colIdx, "soc")),
	}
	rec.Boron = parseOptional(get(row, colIdx, "boron"))
	rec.Iron = parseOptional(get(row, colIdx, "iron"))
	rec.Zinc = parseOptional(get(row, colIdx, "zinc"))
	rec.SoilPH = parseOptional(get(row, colIdx, "soil_ph"))
	return rec, true
}

func writeDataset(path string, records []village.Record) error {
	out := map[string][]village.Record{"villages": records}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func get(row []string, colIdx map[string]int, col string) string {
	i, ok := colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

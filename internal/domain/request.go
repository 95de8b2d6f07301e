package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawRequest represents an unprocessed analysis request read from the source
// topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// rawRequestPayload is the JSON shape published by the field API.
type rawRequestPayload struct {
	RequestID    string    `json:"requestId"`
	FieldID      string    `json:"fieldId"`
	Coordinates  []float64 `json:"coordinates"` // [lat, lon]
	CropType     string    `json:"cropType"`
	StartDate    string    `json:"startDate,omitempty"`    // RFC 3339 date
	EndDate      string    `json:"endDate,omitempty"`      // RFC 3339 date
	SpecificDate string    `json:"specificDate,omitempty"` // overrides start/end
	CloudCover   *float64  `json:"cloudCover,omitempty"`   // observed %, from weather feed
	MonsoonPhase string    `json:"monsoonPhase,omitempty"` // e.g. "active_monsoon"
}

// AnalysisRequest is the validated, domain-rich request after parsing.
type AnalysisRequest struct {
	RequestID string
	FieldID   string
	Lat       float64
	Lon       float64
	Crop      Crop
	CropName  string

	StartDate time.Time
	EndDate   time.Time

	// Optional condition signals used by source selection.
	CloudCover   *float64
	MonsoonPhase string
}

// defaultLookbackDays is the rolling window searched when the caller gives
// no date range.
const defaultLookbackDays = 90

// ParseRawRequest deserializes and validates a raw request. Malformed
// coordinates are fatal-for-request: they indicate a caller bug, not a
// data-availability condition.
func ParseRawRequest(raw RawRequest) (AnalysisRequest, error) {
	var p rawRequestPayload
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return AnalysisRequest{}, fmt.Errorf("parse analysis request: %w", err)
	}

	if p.FieldID == "" {
		return AnalysisRequest{}, fmt.Errorf("analysis request missing fieldId")
	}
	if len(p.Coordinates) != 2 {
		return AnalysisRequest{}, fmt.Errorf("analysis request for field %q: coordinates must be [lat, lon], got %d values", p.FieldID, len(p.Coordinates))
	}
	lat, lon := p.Coordinates[0], p.Coordinates[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return AnalysisRequest{}, fmt.Errorf("analysis request for field %q: coordinates out of range: lat=%g lon=%g", p.FieldID, lat, lon)
	}

	start, end, err := resolveDateWindow(p.StartDate, p.EndDate, p.SpecificDate)
	if err != nil {
		return AnalysisRequest{}, fmt.Errorf("analysis request for field %q: %w", p.FieldID, err)
	}

	return AnalysisRequest{
		RequestID:    p.RequestID,
		FieldID:      p.FieldID,
		Lat:          lat,
		Lon:          lon,
		Crop:         ParseCrop(p.CropType),
		CropName:     p.CropType,
		StartDate:    start,
		EndDate:      end,
		CloudCover:   p.CloudCover,
		MonsoonPhase: p.MonsoonPhase,
	}, nil
}

// resolveDateWindow applies the default rolling lookback when no dates are
// supplied. A specificDate expands to that single day.
func resolveDateWindow(startStr, endStr, specificStr string) (time.Time, time.Time, error) {
	if specificStr != "" {
		day, err := parseDate(specificStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return day, day.Add(24 * time.Hour), nil
	}

	end := clock.Now().UTC()
	if endStr != "" {
		parsed, err := parseDate(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -defaultLookbackDays)
	if startStr != "" {
		parsed, err := parseDate(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date window: start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// MonsoonSeason classifies a month into the Indian cropping season, which
// drives the per-season cloud-cover ceiling.
type MonsoonSeason string

const (
	SeasonKharif MonsoonSeason = "kharif" // Jun-Oct, monsoon crops
	SeasonRabi   MonsoonSeason = "rabi"   // Nov-Apr, winter crops
	SeasonZaid   MonsoonSeason = "zaid"   // May, summer gap
)

// SeasonFor returns the cropping season for a point in time.
func SeasonFor(t time.Time) MonsoonSeason {
	switch m := t.Month(); {
	case m >= time.June && m <= time.October:
		return SeasonKharif
	case m == time.May:
		return SeasonZaid
	default:
		return SeasonRabi
	}
}

// CloudCeiling is the season-appropriate maximum cloud cover for catalog
// searches: stricter in the dry rabi months, looser during the monsoon.
func (s MonsoonSeason) CloudCeiling() float64 {
	switch s {
	case SeasonKharif:
		return 50
	case SeasonZaid:
		return 40
	default:
		return 30
	}
}

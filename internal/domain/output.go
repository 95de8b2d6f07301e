package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OutputMessage is the serialized form destined for the sink topic.
type OutputMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeResult encodes a fallback result for publication. The message is
// keyed by field so all estimates for one field land on the same partition.
func SerializeResult(res FallbackResult) (OutputMessage, error) {
	value, err := json.Marshal(res)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize result for field %q: %w", res.FieldID, err)
	}

	return OutputMessage{
		Key:   []byte(res.FieldID),
		Value: value,
		Headers: map[string]string{
			"outcome":      "success",
			"source":       res.Source,
			"tier":         strconv.Itoa(res.Tier),
			"processed_at": res.ProcessedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// SerializeFailure encodes a terminal failure for publication on the same
// sink topic, so downstream consumers see exactly one record per request.
func SerializeFailure(f FailureResult) (OutputMessage, error) {
	value, err := json.Marshal(f)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize failure for field %q: %w", f.FieldID, err)
	}

	return OutputMessage{
		Key:     []byte(f.FieldID),
		Value:   value,
		Headers: map[string]string{"outcome": "failure"},
	}, nil
}

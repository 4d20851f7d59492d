package pageviews

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"MoviePageViews/internal/domain"
)

// DailyViewsField is the payload field holding per-day samples.
const DailyViewsField = "daily_views"

// Total sums the daily samples of a stats payload.
//
// The samples may be an array or a date-keyed object. Samples that are not
// numbers (or numeric strings), and negative samples, count as zero. Only a
// payload that is not a JSON object fails. The sum is a plain int64 and is not
// guarded against overflow.
func Total(payload []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var root map[string]json.RawMessage
	if err := dec.Decode(&root); err != nil {
		return 0, fmt.Errorf("decode payload: %v: %w", err, domain.ErrParse)
	}
	if root == nil {
		return 0, fmt.Errorf("payload is null: %w", domain.ErrParse)
	}

	raw, ok := root[DailyViewsField]
	if !ok {
		return 0, nil
	}

	var total int64
	for _, sample := range samples(raw) {
		total += coerce(sample)
	}
	return total, nil
}

func samples(raw json.RawMessage) []any {
	var list []any
	if err := decodeNumbers(raw, &list); err == nil {
		return list
	}

	var byDay map[string]any
	if err := decodeNumbers(raw, &byDay); err == nil {
		values := make([]any, 0, len(byDay))
		for _, v := range byDay {
			values = append(values, v)
		}
		return values
	}

	return nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func coerce(sample any) int64 {
	var n json.Number
	switch v := sample.(type) {
	case json.Number:
		n = v
	case string:
		n = json.Number(strings.TrimSpace(v))
	default:
		return 0
	}

	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return max(i, 0)
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil && f > 0 && f < 1<<63 {
		return int64(f)
	}
	return 0
}

// Package recipe defines the corpus record shared by the scraper, the indexer and the
// search tool, plus helpers for the newline-delimited JSON file that carries it.
package recipe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one scraped recipe. Nutrition values are kept as scraped (usually strings
// such as "12 g") so downstream consumers decide how to interpret them.
type Record struct {
	Title       string         `json:"title"`
	Ingredients []string       `json:"ingredients"`
	Steps       []string       `json:"steps"`
	Nutrition   map[string]any `json:"nutrition"`
	TotalTime   string         `json:"total_time,omitempty"`
	Servings    string         `json:"servings,omitempty"`
	SourceURL   string         `json:"source_url,omitempty"`
}

const (
	NutritionProtein  = "proteinContent"
	NutritionCalories = "calories"
)

// ProteinContent returns the raw protein value, or "" when absent.
func (r Record) ProteinContent() string {
	return r.nutritionString(NutritionProtein)
}

// Calories returns the raw calories value, or "" when absent.
func (r Record) Calories() string {
	return r.nutritionString(NutritionCalories)
}

func (r Record) nutritionString(key string) string {
	v, ok := r.Nutrition[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ParseAmount extracts a number from a nutrition string by keeping only digits and the
// decimal point, so "12.5 g" yields 12.5. ok is false when nothing parseable remains.
func ParseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Text renders the record as plain text for use as model context.
func (r Record) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	if r.Servings != "" {
		fmt.Fprintf(&b, "Servings: %s\n", r.Servings)
	}
	if r.TotalTime != "" {
		fmt.Fprintf(&b, "Total time: %s\n", r.TotalTime)
	}
	b.WriteString("\nIngredients:\n")
	for _, ing := range r.Ingredients {
		fmt.Fprintf(&b, "- %s\n", ing)
	}
	b.WriteString("\nSteps:\n")
	for i, step := range r.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(r.Nutrition) > 0 {
		data, err := json.Marshal(r.Nutrition)
		if err == nil {
			fmt.Fprintf(&b, "\nNutrition: %s\n", data)
		}
	}
	return b.String()
}

// ReadJSONL decodes one record per non-blank line.
func ReadJSONL(r io.Reader) ([]Record, error) {
	records, _, err := ReadRawJSONL(r)
	return records, err
}

// ReadRawJSONL decodes one record per non-blank line and also returns each line as read,
// so fields Record does not model survive a round trip.
func ReadRawJSONL(r io.Reader) ([]Record, []json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records []Record
		raws    []json.RawMessage
	)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
		raws = append(raws, json.RawMessage(bytes.Clone(raw)))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return records, raws, nil
}

// WriteJSONL encodes each record on its own line.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

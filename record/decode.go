// Package record decodes population observations from raw topic
// payloads and validates the fields aggregation depends on.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"poptrend/strutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one population observation for a single country and year.
// Country, ISO3 and Indicator are carried for display and audit only;
// aggregation reads Year and Population.
type Record struct {
	Year       int
	Population float64
	Country    string
	ISO3       string
	Indicator  string
}

// DecodeError reports a payload that is not a well-formed JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a well-formed payload whose date or value
// field is missing or unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// wireRecord matches the World Bank indicator record shape. The fields
// aggregation does not use stay raw so their shape never rejects a
// payload.
type wireRecord struct {
	Indicator jsoniter.RawMessage `json:"indicator"`
	Country   jsoniter.RawMessage `json:"country"`
	ISO3      jsoniter.RawMessage `json:"countryiso3code"`
	Date      jsoniter.RawMessage `json:"date"`
	Value     jsoniter.RawMessage `json:"value"`
}

// wireNamed is the {"id": ..., "value": ...} sub-object used by the
// indicator and country fields.
type wireNamed struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Decode parses one raw payload into a Record. It returns a
// *DecodeError when the payload is not a JSON object and a
// *ValidationError when date or value is missing or wrong-typed.
func Decode(payload []byte) (Record, error) {
	if !isJSONObject(payload) {
		return Record{}, &DecodeError{Err: errors.New("payload is not a JSON object")}
	}
	var w wireRecord
	if err := json.Unmarshal(payload, &w); err != nil {
		return Record{}, &DecodeError{Err: err}
	}

	year, verr := parseYear(w.Date)
	if verr != nil {
		return Record{}, verr
	}
	population, verr := parseValue(w.Value)
	if verr != nil {
		return Record{}, verr
	}

	rec := Record{
		Year:       year,
		Population: population,
		Country:    namedValue(w.Country),
		Indicator:  namedID(w.Indicator),
	}
	if len(w.ISO3) > 0 {
		// Best effort; a non-string iso3 code is simply dropped.
		var iso3 string
		if err := json.Unmarshal(w.ISO3, &iso3); err == nil {
			rec.ISO3 = strutil.NormalizeUpper(iso3)
		}
	}
	return rec, nil
}

// isJSONObject reports whether the first JSON token is an object open.
// Unmarshal alone is not enough: a bare null decodes into the wire
// struct without error.
func isJSONObject(payload []byte) bool {
	for _, b := range payload {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// yearLimit bounds accepted years so float truncation stays inside int
// range. Anything past it is garbage, not a calendar year.
const yearLimit = 1e9

// parseYear accepts a JSON string holding a base-10 integer or a JSON
// number. Fractional numeric years truncate toward zero.
func parseYear(raw jsoniter.RawMessage) (int, *ValidationError) {
	if len(raw) == 0 {
		return 0, &ValidationError{Field: "date", Reason: "missing"}
	}
	switch raw[0] {
	case 'n':
		return 0, &ValidationError{Field: "date", Reason: "null"}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, &ValidationError{Field: "date", Reason: "unreadable string"}
		}
		year, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, &ValidationError{Field: "date", Reason: fmt.Sprintf("not an integer year: %q", s)}
		}
		return year, nil
	case 't', 'f', '{', '[':
		return 0, &ValidationError{Field: "date", Reason: "not a year"}
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, &ValidationError{Field: "date", Reason: "not a year"}
		}
		if f >= yearLimit || f <= -yearLimit {
			return 0, &ValidationError{Field: "date", Reason: "year out of range"}
		}
		return int(f), nil
	}
}

// parseValue accepts only a JSON number for the population value.
func parseValue(raw jsoniter.RawMessage) (float64, *ValidationError) {
	if len(raw) == 0 {
		return 0, &ValidationError{Field: "value", Reason: "missing"}
	}
	switch raw[0] {
	case 'n':
		return 0, &ValidationError{Field: "value", Reason: "null"}
	case '"', 't', 'f', '{', '[':
		return 0, &ValidationError{Field: "value", Reason: "not a number"}
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, &ValidationError{Field: "value", Reason: "not a number"}
		}
		return f, nil
	}
}

func namedValue(raw jsoniter.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var n wireNamed
	if err := json.Unmarshal(raw, &n); err == nil && n.Value != "" {
		return n.Value
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func namedID(raw jsoniter.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var n wireNamed
	if err := json.Unmarshal(raw, &n); err == nil && n.ID != "" {
		return n.ID
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRow is the loosely-typed image row accepted at the ingestion boundary.
// Fields are optional; catalog.Build applies defaults and rejects incomplete rows.
type RawRow struct {
	Company           LooseString `json:"empresa"`
	FiscalYear        LooseInt    `json:"ejercicio"`
	ProductCode       LooseString `json:"codprodu"`
	LineNumber        LooseInt    `json:"linea"`
	Description       LooseString `json:"descripcion"`
	ClassCode         LooseString `json:"codclaarchivo"`
	ImageName         LooseString `json:"nombre"`
	Subtype           LooseString `json:"subtipo"`
	AttachmentRef     LooseString `json:"ficadjunto"`
	AssociatedDocType LooseString `json:"tipdocasociado"`
	CreatedAt         LooseTime   `json:"fecalta"`
	SourceModifiedAt  LooseTime   `json:"fecftpmod"`
}

// LooseString accepts JSON strings, numbers and booleans.
type LooseString struct {
	Value string
	Valid bool
}

func StringValue(v string) LooseString { return LooseString{Value: v, Valid: true} }

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = LooseString{}
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString{Value: v, Valid: true}
		return nil
	}
	*s = LooseString{Value: string(data), Valid: true}
	return nil
}

func (s LooseString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// LooseInt accepts JSON numbers or numeric strings. Unparseable input is treated as absent.
type LooseInt struct {
	Value int
	Valid bool
}

func IntValue(v int) LooseInt { return LooseInt{Value: v, Valid: true} }

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	f, ok := parseLooseNumber(data)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = LooseInt{}
		return nil
	}
	*n = LooseInt{Value: int(f), Valid: true}
	return nil
}

func (n LooseInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// LooseTime accepts RFC3339 / date strings or epoch milliseconds.
type LooseTime struct {
	Value time.Time
	Valid bool
}

func TimeValue(v time.Time) LooseTime { return LooseTime{Value: v, Valid: true} }

var looseTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *LooseTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = LooseTime{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		for _, layout := range looseTimeLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				*t = LooseTime{Value: parsed.UTC(), Valid: true}
				return nil
			}
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			*t = LooseTime{Value: time.UnixMilli(ms).UTC(), Valid: true}
		}
		return nil
	}
	f, ok := parseLooseNumber(data)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return nil
	}
	*t = LooseTime{Value: time.UnixMilli(int64(f)).UTC(), Valid: true}
	return nil
}

func (t LooseTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// parseLooseNumber reads a JSON number or numeric string. A string that is not numeric
// yields NaN so callers can apply their own finiteness rule.
func parseLooseNumber(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return 0, false
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return math.NaN(), true
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return math.NaN(), true
	}
	return f, true
}

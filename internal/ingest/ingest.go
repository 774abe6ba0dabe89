// Package ingest decodes exported maintenance data without rejecting bad records.
//
// Field values that cannot be interpreted are replaced by zero values and
// reported as Issues; only input that is not a JSON array of objects fails.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayouts are tried in order when parsing date_performed.
var DateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Issue describes one field that was replaced by its zero value.
type Issue struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	ref := fmt.Sprintf("#%d", i.Index)
	if i.ID != "" {
		ref = i.ID
	}
	return fmt.Sprintf("record %s: %s %s (%s)", ref, i.Field, i.Message, i.Value)
}

type rawLog struct {
	ID                json.RawMessage `json:"id"`
	VehicleID         json.RawMessage `json:"vehicle_id"`
	MaintenanceTypeID json.RawMessage `json:"maintenance_type_id"`
	MaintenanceType   string          `json:"maintenance_type"`
	Category          string          `json:"category"`
	KmPerformed       json.RawMessage `json:"km_performed"`
	DatePerformed     json.RawMessage `json:"date_performed"`
	ServiceCost       json.RawMessage `json:"service_cost"`
	ProductCost       json.RawMessage `json:"product_cost"`
	Notes             string          `json:"notes"`
}

type rawType struct {
	ID                    json.RawMessage `json:"id"`
	Name                  string          `json:"name"`
	DefaultIntervalKm     json.RawMessage `json:"default_interval_km"`
	DefaultIntervalMonths json.RawMessage `json:"default_interval_months"`
	Description           string          `json:"description"`
}

// issues collects problems for one record.
type issues struct {
	list  []Issue
	index int
	id    string
}

func (s *issues) add(field string, raw json.RawMessage, msg string) {
	s.list = append(s.list, Issue{Index: s.index, ID: s.id, Field: field, Value: string(raw), Message: msg})
}

// DecodeLogs reads a JSON array of maintenance log records.
func DecodeLogs(r io.Reader) ([]models.MaintenanceLog, []Issue, error) {
	var raws []rawLog
	if err := decodeArray(r, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode maintenance logs: %w", err)
	}

	logs := make([]models.MaintenanceLog, 0, len(raws))
	found := &issues{}
	for i, raw := range raws {
		found.index, found.id = i, text(raw.ID)
		l := models.MaintenanceLog{
			ID:                hexID(raw.ID),
			VehicleID:         text(raw.VehicleID),
			MaintenanceTypeID: hexID(raw.MaintenanceTypeID),
			MaintenanceType:   strings.TrimSpace(raw.MaintenanceType),
			Category:          models.Category(strings.ToLower(strings.TrimSpace(raw.Category))),
			Notes:             raw.Notes,
		}
		l.KmPerformed = integer(found, "km_performed", raw.KmPerformed)
		l.ServiceCost = number(found, "service_cost", raw.ServiceCost)
		l.ProductCost = number(found, "product_cost", raw.ProductCost)
		l.DatePerformed = date(found, raw.DatePerformed)
		logs = append(logs, l)
	}
	return logs, found.list, nil
}

// DecodeTypes reads a JSON array of maintenance type records.
func DecodeTypes(r io.Reader) ([]models.MaintenanceType, []Issue, error) {
	var raws []rawType
	if err := decodeArray(r, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode maintenance types: %w", err)
	}

	types := make([]models.MaintenanceType, 0, len(raws))
	found := &issues{}
	for i, raw := range raws {
		found.index, found.id = i, text(raw.ID)
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			found.add("name", json.RawMessage(`""`), "is empty")
		}
		types = append(types, models.MaintenanceType{
			ID:                    hexID(raw.ID),
			Name:                  name,
			DefaultIntervalKm:     integer(found, "default_interval_km", raw.DefaultIntervalKm),
			DefaultIntervalMonths: integer(found, "default_interval_months", raw.DefaultIntervalMonths),
			Description:           raw.Description,
		})
	}
	return types, found.list, nil
}

func decodeArray(r io.Reader, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// text returns a JSON string or number as plain text.
func text(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func hexID(raw json.RawMessage) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(text(raw))
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// number accepts JSON numbers and numeric strings (with a decimal comma too).
// Missing values are zero without an issue.
func number(found *issues, field string, raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0
		}
		if v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				found.add(field, raw, "is not a finite number, using 0")
				return 0
			}
			return v
		}
	}
	found.add(field, raw, "is not a number, using 0")
	return 0
}

// integer is number truncated to an int. Values outside the int range are
// reported and become 0.
func integer(found *issues, field string, raw json.RawMessage) int {
	v := number(found, field, raw)
	if v >= math.MaxInt || v < math.MinInt {
		found.add(field, raw, "is out of range, using 0")
		return 0
	}
	return int(v)
}

// date parses date_performed; unparseable or missing dates become the zero time.
func date(found *issues, raw json.RawMessage) time.Time {
	s := text(raw)
	if s == "" {
		found.add("date_performed", raw, "is missing")
		return time.Time{}
	}
	if t, ok := ParseDate(s); ok {
		return t
	}
	found.add("date_performed", raw, "is not a valid date")
	return time.Time{}
}

// ParseDate parses s with the first matching layout of DateLayouts.
// Layouts without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Material is one borrowed item of a loan.
type Material struct {
	Name     string
	Quantity string
	// Fields is the length of the source entry; entries past the pair are ignored.
	Fields int
}

// MaterialsResult is the tagged outcome of decoding a materials payload.
// Callers branch on OK; Reason is set only on failure.
type MaterialsResult struct {
	OK     bool
	Items  []Material
	Reason string
}

// DecodeMaterials parses a JSON list of [name, quantity] pairs. Entries with
// more than two fields are kept with their first two; PDF lines skip them.
func DecodeMaterials(value any) MaterialsResult {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return materialsFailure("payload is null")
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return materialsFailure(fmt.Sprintf("unsupported payload type %T", value))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return materialsFailure("payload is empty")
	}

	var pairs []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&pairs); err != nil {
		return materialsFailure(err.Error())
	}
	if pairs == nil {
		return materialsFailure("payload is not a list")
	}
	if dec.More() {
		return materialsFailure("unexpected data after list")
	}

	items := make([]Material, 0, len(pairs))
	for i, pair := range pairs {
		var fields []any
		pd := json.NewDecoder(bytes.NewReader(pair))
		pd.UseNumber()
		if err := pd.Decode(&fields); err != nil {
			return materialsFailure(fmt.Sprintf("item %d is not a list", i))
		}
		if len(fields) < 2 {
			return materialsFailure(fmt.Sprintf("item %d has %d fields, want 2", i, len(fields)))
		}
		name, ok := scalarText(fields[0])
		if !ok {
			return materialsFailure(fmt.Sprintf("item %d has a non-scalar name", i))
		}
		qty, ok := scalarText(fields[1])
		if !ok {
			return materialsFailure(fmt.Sprintf("item %d has a non-scalar quantity", i))
		}
		items = append(items, Material{Name: name, Quantity: qty, Fields: len(fields)})
	}
	return MaterialsResult{OK: true, Items: items}
}

// CSVText renders the result as a single CSV cell value.
func (r MaterialsResult) CSVText() string {
	if !r.OK {
		return r.ErrorMarker()
	}
	parts := make([]string, len(r.Items))
	for i, item := range r.Items {
		parts[i] = item.Name + ": " + item.Quantity
	}
	return strings.Join(parts, " | ")
}

// Lines renders the result as PDF text lines.
func (r MaterialsResult) Lines() []string {
	if !r.OK {
		return []string{r.ErrorMarker()}
	}
	lines := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if item.Fields != 2 {
			continue
		}
		lines = append(lines, "> "+item.Name+" - "+item.Quantity)
	}
	return lines
}

// ErrorMarker is the visible text substituted for undecodable payloads.
func (r MaterialsResult) ErrorMarker() string {
	return "Error JSON: " + r.Reason
}

func materialsFailure(reason string) MaterialsResult {
	return MaterialsResult{Reason: reason}
}

func scalarText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

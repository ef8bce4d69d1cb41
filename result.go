package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999-07:00"
)

// Row is one result row. Columns keep the order the database returned them in,
// which a plain map would lose on encoding.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a row from aligned column names and values.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalNoEscape(normalizeValue(r.values[i]))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToolResult is the outcome of one tool call. Exactly one of the three
// shapes (read, write, failure) is ever encoded.
type ToolResult struct {
	Success      bool
	Data         []Row
	RowCount     int
	Message      string
	AffectedRows int64
	Err          string

	readLike bool
}

// readResult reports rows from a read-like statement.
func readResult(rows []Row) ToolResult {
	if rows == nil {
		rows = []Row{}
	}
	return ToolResult{Success: true, Data: rows, RowCount: len(rows), readLike: true}
}

// writeResult reports the affected-row count of a write-like statement.
func writeResult(affected int64) ToolResult {
	return ToolResult{
		Success:      true,
		Message:      fmt.Sprintf("Query executed successfully. Rows affected: %d", affected),
		AffectedRows: affected,
	}
}

// failedResult reports a tool-level failure.
func failedResult(msg string) ToolResult {
	return ToolResult{Success: false, Err: msg}
}

func (t ToolResult) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Success:
		return marshalNoEscape(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, t.Err})
	case t.readLike:
		return marshalNoEscape(struct {
			Success  bool  `json:"success"`
			Data     []Row `json:"data"`
			RowCount int   `json:"row_count"`
		}{true, t.Data, t.RowCount})
	default:
		return marshalNoEscape(struct {
			Success      bool   `json:"success"`
			Message      string `json:"message"`
			AffectedRows int64  `json:"affected_rows"`
		}{true, t.Message, t.AffectedRows})
	}
}

// Text renders the result the way tools/call carries it: indented with two
// spaces.
func (t ToolResult) Text() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalizeValue coerces driver values that have no natural JSON form into
// strings.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case float64:
		return normalizeFloat(val)
	case float32:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return normalizeFloat(f)
		}
		return val
	case time.Time:
		return formatTime(val)
	default:
		return val
	}
}

// normalizeFloat renders NaN and the infinities as "NaN", "+Inf" and "-Inf".
func normalizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// formatTime prints a zero-offset midnight as a bare date, which is how
// drivers hand back DATE columns.
func formatTime(t time.Time) string {
	h, m, sec := t.Clock()
	if _, offset := t.Zone(); offset == 0 && h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(timestampLayout)
}

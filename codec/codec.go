// Package codec is the ValueCodec: bidirectional, pure, stateless
// conversion between application scalar/temporal/JSON values and
// column-native wire values, keyed by declared column type (spec §4.2).
//
// The conversion table is grounded on the teacher repository's
// core.NormalizeDataType (internal/core/schema.go), generalized from its
// 9 coarse buckets back out to the spec's full closed set of column
// types, because the per-family rules below need the finer grain (e.g.
// tinyint(1) vs. other integer widths).
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mulertech/database/dberrors"
)

// ColumnType is the closed set of semantic column types from spec §3.
type ColumnType string

const (
	Tinyint    ColumnType = "tinyint"
	Tinyint1   ColumnType = "tinyint1" // tinyint(1), the boolean convention
	Smallint   ColumnType = "smallint"
	Int        ColumnType = "int"
	Bigint     ColumnType = "bigint"
	Decimal    ColumnType = "decimal"
	Float      ColumnType = "float"
	Double     ColumnType = "double"
	Char       ColumnType = "char"
	Varchar    ColumnType = "varchar"
	Text       ColumnType = "text"
	LongText   ColumnType = "longtext"
	Binary     ColumnType = "binary"
	Varbinary  ColumnType = "varbinary"
	Blob       ColumnType = "blob"
	LongBlob   ColumnType = "longblob"
	Date       ColumnType = "date"
	Time       ColumnType = "time"
	DateTime   ColumnType = "datetime"
	Timestamp  ColumnType = "timestamp"
	Year       ColumnType = "year"
	Enum       ColumnType = "enum"
	Set        ColumnType = "set"
	JSON       ColumnType = "json"
	Geometry   ColumnType = "geometry"
	Point      ColumnType = "point"
	LineString ColumnType = "linestring"
	Polygon    ColumnType = "polygon"
)

// Family groups a ColumnType into one of the §4.2 table-family rows.
type Family int

const (
	FamilyInteger Family = iota
	FamilyDecimal
	FamilyText // char/varchar/text family, time, enum/set
	FamilyBinary
	FamilyTemporal // date/datetime/timestamp
	FamilyJSON
	FamilyBoolean // tinyint(1)
	FamilyGeometry
)

// Family classifies a ColumnType per the §4.2 table.
func (ct ColumnType) Family() Family {
	switch ct {
	case Tinyint1:
		return FamilyBoolean
	case Tinyint, Smallint, Int, Bigint, Year:
		return FamilyInteger
	case Decimal, Float, Double:
		return FamilyDecimal
	case Char, Varchar, Text, LongText, Time, Enum, Set:
		return FamilyText
	case Binary, Varbinary, Blob, LongBlob:
		return FamilyBinary
	case Date, DateTime, Timestamp:
		return FamilyTemporal
	case JSON:
		return FamilyJSON
	case Geometry, Point, LineString, Polygon:
		return FamilyGeometry
	default:
		return FamilyText
	}
}

const dateTimeLayout = "2006-01-02 15:04:05"
const dateLayout = "2006-01-02"

// ToColumn converts an application value into its column-native wire
// representation for the given column type, applying the declared
// precision/scale for decimal columns. It never fails on null -> null.
func ToColumn(v any, ct ColumnType, scale int) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch ct.Family() {
	case FamilyBoolean:
		return toBoolColumn(v), nil
	case FamilyInteger:
		return toIntColumn(v), nil
	case FamilyDecimal:
		f := toFloatColumn(v)
		if scale > 0 {
			mult := math.Pow(10, float64(scale))
			f = math.Round(f*mult) / mult
		}
		return f, nil
	case FamilyBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		default:
			return nil, &dberrors.TypeMismatch{Column: string(ct), Want: "binary", Got: v}
		}
	case FamilyTemporal:
		return toTemporalColumn(v, ct)
	case FamilyJSON:
		return toJSONColumn(v)
	case FamilyGeometry:
		return toTextColumn(v)
	default: // FamilyText
		return toTextColumn(v)
	}
}

// FromColumn converts a column-native wire value back into an application
// value for the given column type.
func FromColumn(v any, ct ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch ct.Family() {
	case FamilyBoolean:
		return fromBoolColumn(v), nil
	case FamilyInteger:
		return fromIntColumn(v), nil
	case FamilyDecimal:
		return toFloatColumn(v), nil
	case FamilyBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		default:
			return nil, &dberrors.TypeMismatch{Column: string(ct), Want: "binary", Got: v}
		}
	case FamilyTemporal:
		return fromTemporalColumn(v, ct), nil
	case FamilyJSON:
		return fromJSONColumn(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// ToColumnExplicit behaves like ToColumn but is used on explicit,
// caller-initiated conversions where malformed input should fail loudly
// instead of silently falling back (spec §4.2: "unparseable string on
// explicit conversion -> InvalidDateFormat", "encoder errors -> InvalidJson").
func ToColumnExplicit(v any, ct ColumnType, scale int) (any, error) {
	if ct.Family() == FamilyTemporal {
		s, ok := v.(string)
		if ok {
			if _, err := parseTemporal(s); err != nil {
				return nil, &dberrors.InvalidDateFormat{Value: s, Cause: err}
			}
		}
	}
	if ct.Family() == FamilyJSON {
		if _, err := json.Marshal(v); err != nil {
			return nil, &dberrors.InvalidJSON{Cause: err}
		}
	}
	return ToColumn(v, ct, scale)
}

func toBoolColumn(v any) int {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if toIntColumn(v) != 0 {
			return 1
		}
		return 0
	case string:
		return toBoolColumn(x != "" && x != "0" && !strings.EqualFold(x, "false"))
	default:
		return 0
	}
}

func fromBoolColumn(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case []byte:
		return len(x) > 0 && x[0] != '0'
	case string:
		return x != "" && x != "0"
	default:
		return false
	}
}

func toIntColumn(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case float32:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseInt(sanitizeNumeric(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case []byte:
		return toIntColumn(string(x))
	default:
		return 0
	}
}

func fromIntColumn(v any) int64 {
	return toIntColumn(v)
}

func toFloatColumn(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(sanitizeNumeric(x), 64)
		if err != nil {
			return 0.0
		}
		return f
	case []byte:
		return toFloatColumn(string(x))
	default:
		return 0.0
	}
}

func sanitizeNumeric(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || (r == '-' && i == 0) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}

func toTextColumn(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return x.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", x), nil
	case time.Time:
		return x.Format(dateTimeLayout), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, &dberrors.TypeMismatch{Column: "text", Want: "string", Got: v}
		}
		return string(b), nil
	default:
		return nil, &dberrors.TypeMismatch{Column: "text", Want: "string", Got: v}
	}
}

func toTemporalColumn(v any, ct ColumnType) (any, error) {
	layout := dateTimeLayout
	if ct == Date {
		layout = dateLayout
	}
	switch x := v.(type) {
	case time.Time:
		return x.Format(layout), nil
	case string:
		t, err := parseTemporal(x)
		if err != nil {
			// Implicit reads fall back to "now" rather than failing;
			// explicit conversions use ToColumnExplicit instead.
			return time.Now().Format(layout), nil
		}
		return t.Format(layout), nil
	default:
		return time.Now().Format(layout), nil
	}
}

func fromTemporalColumn(v any, ct ColumnType) any {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		return x
	default:
		return time.Time{}
	}
	t, err := parseTemporal(s)
	if err != nil {
		return time.Now()
	}
	return t
}

func parseTemporal(s string) (time.Time, error) {
	for _, layout := range []string{dateTimeLayout, dateLayout, time.RFC3339, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date/time format: " + s)
}

func toJSONColumn(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &dberrors.InvalidJSON{Cause: err}
	}
	return string(b), nil
}

func fromJSONColumn(v any) any {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		return []any{}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return []any{}
	}
	return out
}

// Equal reports whether two already-column-native values are equal for
// the purposes of change detection (spec §4.4): decimals compared at
// declared scale, datetimes at second resolution, binary byte-wise, JSON
// structurally via canonical (re-marshaled) encoding.
func Equal(a, b any, ct ColumnType, scale int) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch ct.Family() {
	case FamilyDecimal:
		fa, _ := ToColumn(a, ct, scale)
		fb, _ := ToColumn(b, ct, scale)
		return toFloatColumn(fa) == toFloatColumn(fb)
	case FamilyTemporal:
		ta, errA := parseTemporal(fmt.Sprintf("%v", a))
		tb, errB := parseTemporal(fmt.Sprintf("%v", b))
		if errA != nil || errB != nil {
			return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
		}
		return ta.Truncate(time.Second).Equal(tb.Truncate(time.Second))
	case FamilyBinary:
		ba, okA := toBytes(a)
		bb, okB := toBytes(b)
		if !okA || !okB {
			return false
		}
		if len(ba) != len(bb) {
			return false
		}
		for i := range ba {
			if ba[i] != bb[i] {
				return false
			}
		}
		return true
	case FamilyJSON:
		encode := func(v any) ([]byte, error) {
			if raw, ok := toBytes(v); ok {
				return raw, nil
			}
			return json.Marshal(v)
		}
		ca, errA := encode(a)
		cb, errB := encode(b)
		if errA != nil || errB != nil {
			return false
		}
		return string(canonicalJSON(ca)) == string(canonicalJSON(cb))
	default:
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
}

func toBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	default:
		return nil, false
	}
}

func canonicalJSON(raw []byte) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}

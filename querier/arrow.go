package querier

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/gigapi/gigapi-lakehouse/core"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ToArrow converts a query result into a single Arrow record, keeping the
// result's column order. Column types are inferred from the first non-null
// value; nested values are carried as JSON strings. An empty result yields a
// zero-row record. The caller must Release the record.
func ToArrow(res *core.Result, mem memory.Allocator) (arrow.Record, error) {
	if res == nil {
		return nil, fmt.Errorf("no result to convert")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, len(res.Columns))
	for i, col := range res.Columns {
		fields[i] = arrow.Field{Name: col, Type: inferTypeFromColumn(col, res.Rows), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, field := range fields {
		fb := b.Field(i)
		for _, row := range res.Rows {
			appendValue(fb, field.Type, row[field.Name])
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, dt arrow.DataType, val any) {
	if val == nil {
		fb.AppendNull()
		return
	}
	switch dt.ID() {
	case arrow.INT64:
		if v, ok := asInt64(val); ok {
			fb.(*array.Int64Builder).Append(v)
		} else {
			fb.AppendNull()
		}
	case arrow.FLOAT64:
		if v, ok := asFloat64(val); ok {
			fb.(*array.Float64Builder).Append(v)
		} else {
			fb.AppendNull()
		}
	case arrow.BOOL:
		switch v := val.(type) {
		case bool:
			fb.(*array.BooleanBuilder).Append(v)
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				fb.(*array.BooleanBuilder).Append(b)
			} else {
				fb.AppendNull()
			}
		default:
			fb.AppendNull()
		}
	case arrow.TIMESTAMP:
		switch v := val.(type) {
		case time.Time:
			fb.(*array.TimestampBuilder).Append(arrow.Timestamp(v.UTC().UnixMicro()))
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				fb.(*array.TimestampBuilder).Append(arrow.Timestamp(t.UTC().UnixMicro()))
			} else {
				fb.AppendNull()
			}
		default:
			fb.AppendNull()
		}
	default:
		fb.(*array.StringBuilder).Append(stringify(val))
	}
}

// inferTypeFromColumn picks the Arrow type for a column by looking at non-null values
func inferTypeFromColumn(columnName string, rows []core.Record) arrow.DataType {
	for _, row := range rows {
		val := row[columnName]
		if val == nil {
			continue
		}
		switch val.(type) {
		case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
			return arrow.PrimitiveTypes.Int64
		case float32, float64:
			return arrow.PrimitiveTypes.Float64
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case time.Time:
			return timestampType
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

func asInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	if n, ok := asInt64(val); ok {
		return float64(n), true
	}
	return 0, false
}

func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", val)
}

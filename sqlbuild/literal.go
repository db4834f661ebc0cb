package sqlbuild

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Literal renders v as a DuckDB literal. It is the only place values are
// embedded into SQL text.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteLiteral(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return floatLiteral(float64(x))
	case float64:
		return floatLiteral(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		f, err := x.Float64()
		if err != nil {
			return "", fmt.Errorf("invalid number %q", x.String())
		}
		return floatLiteral(f)
	case time.Time:
		return "TIMESTAMP " + QuoteLiteral(x.UTC().Format("2006-01-02 15:04:05.999999")), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

func floatLiteral(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v cannot be used as a literal", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// 'g' drops the decimal point for whole numbers.
	return "CAST(" + s + " AS DOUBLE)", nil
}

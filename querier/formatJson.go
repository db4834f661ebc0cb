package querier

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gigapi/gigapi-lakehouse/core"
)

func JsonFormatter(res *core.Result, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(QueryResponse{
		Columns: res.Columns,
		Results: ProcessResultsForJSON(res),
	})
}

// NDJsonFormatter writes one JSON object per row.
func NDJsonFormatter(res *core.Result, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, row := range ProcessResultsForJSON(res) {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// ProcessResultsForJSON prepares results for JSON serialization. int64 is
// sent as a string so JavaScript clients keep full precision.
func ProcessResultsForJSON(res *core.Result) []map[string]any {
	processed := make([]map[string]any, res.RowCount())
	for i, row := range res.Rows {
		out := make(map[string]any, len(row))
		for key, value := range row {
			switch v := value.(type) {
			case int64:
				out[key] = strconv.FormatInt(v, 10)
			case time.Time:
				out[key] = v.UTC().Format(time.RFC3339Nano)
			case []byte:
				out[key] = string(v)
			default:
				out[key] = v
			}
		}
		processed[i] = out
	}
	return processed
}

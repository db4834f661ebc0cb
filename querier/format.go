package querier

import (
	"net/http"

	"github.com/gigapi/gigapi-lakehouse/core"
)

type formatterFn func(res *core.Result, w http.ResponseWriter) error

var formatters = map[string]formatterFn{
	"json":   JsonFormatter,
	"ndjson": NDJsonFormatter,
}

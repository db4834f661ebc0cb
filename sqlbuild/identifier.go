// Package sqlbuild renders identifiers, literals and statements for DuckDB.
package sqlbuild

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const maxIdentifierLen = 128

// ValidateIdentifier checks that name is a plain SQL identifier.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name %q must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// CreateS3Secret returns the DDL that registers S3 credentials with httpfs.
func CreateS3Secret(name, keyID, secret, endpoint, region string, useSSL bool) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid secret name: %w", err)
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE S3,
	KEY_ID %s,
	SECRET %s,
	ENDPOINT %s,
	REGION %s,
	URL_STYLE 'path',
	USE_SSL %t
)`,
		QuoteIdentifier(name),
		QuoteLiteral(keyID),
		QuoteLiteral(secret),
		QuoteLiteral(endpoint),
		QuoteLiteral(region),
		useSSL,
	), nil
}

// ReadParquet renders a read_parquet table function over a glob.
func ReadParquet(glob string) string {
	return fmt.Sprintf("read_parquet(%s, union_by_name=true, hive_partitioning=false)", QuoteLiteral(glob))
}

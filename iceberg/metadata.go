package iceberg

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// isValidName validates that a namespace or table name is a single path component
func isValidName(name string) bool {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return false
	}
	return true
}

// TableMetadata is the part of an Iceberg metadata file the catalog reads.
type TableMetadata struct {
	FormatVersion     int               `json:"format-version"`
	TableUUID         string            `json:"table-uuid"`
	Location          string            `json:"location"`
	LastUpdatedMs     int64             `json:"last-updated-ms"`
	CurrentSnapshotID *int64            `json:"current-snapshot-id,omitempty"`
	Properties        map[string]string `json:"properties,omitempty"`
}

// ParseMetadata decodes an Iceberg table metadata document.
func ParseMetadata(data []byte) (*TableMetadata, error) {
	var md TableMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	return &md, nil
}

// v12.metadata.json (Hadoop tables) or 00012-<uuid>.metadata.json (REST/JDBC catalogs)
var metadataFileRe = regexp.MustCompile(`^v?(\d+)(?:-[^/]*)?\.metadata\.json$`)

// latestMetadataFile picks the highest-versioned metadata file from a listing.
func latestMetadataFile(locs []string) (string, bool) {
	type candidate struct {
		loc     string
		version int
	}
	var cs []candidate
	for _, loc := range locs {
		m := metadataFileRe.FindStringSubmatch(path.Base(loc))
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cs = append(cs, candidate{loc: loc, version: v})
	}
	if len(cs) == 0 {
		return "", false
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].version != cs[j].version {
			return cs[i].version > cs[j].version
		}
		return cs[i].loc > cs[j].loc
	})
	return cs[0].loc, true
}

// normalizeLocation rewrites Hadoop-style schemes to what DuckDB reads.
func normalizeLocation(loc string) string {
	loc = strings.TrimRight(loc, "/")
	for _, scheme := range []string{"s3a://", "s3n://"} {
		if strings.HasPrefix(loc, scheme) {
			return "s3://" + strings.TrimPrefix(loc, scheme)
		}
	}
	return strings.TrimPrefix(loc, "file://")
}

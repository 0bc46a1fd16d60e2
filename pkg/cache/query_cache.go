package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// QueryTotalTTL is how long cached list totals live. Writes invalidate
// them eagerly by tag, so the TTL only bounds staleness on providers
// without tag support.
const QueryTotalTTL = 2 * time.Minute

// queryCacheKey represents the components used to build a cache key for
// a list total count.
type queryCacheKey struct {
	Connection string              `json:"connection"`
	Table      string              `json:"table"`
	Filters    map[string][]string `json:"filters,omitempty"`
	Search     string              `json:"search,omitempty"`
}

// BuildQueryTotalKey builds a cache key for the total count of a record
// set under the given filter state.
func BuildQueryTotalKey(connection, table string, filters map[string][]string, search string) string {
	key := queryCacheKey{
		Connection: connection,
		Table:      table,
		Filters:    filters,
		Search:     search,
	}

	jsonData, err := json.Marshal(key)
	if err != nil {
		return fmt.Sprintf("query_total:%s", hashString(fmt.Sprintf("%s_%s_%v_%s", connection, table, filters, search)))
	}
	return fmt.Sprintf("query_total:%s", hashString(string(jsonData)))
}

// TableTag returns the invalidation tag covering every cached total for
// a table on a connection.
func TableTag(connection, table string) string {
	return fmt.Sprintf("table:%s/%s", connection, table)
}

// CachedTotal represents a cached total count.
type CachedTotal struct {
	Total int `json:"total"`
}

// InvalidateTable removes all cached totals for a table. Called after
// any write to the table commits.
func InvalidateTable(ctx context.Context, connection, table string) error {
	return GetDefaultCache().DeleteByTag(ctx, TableTag(connection, table))
}

// hashString computes the SHA256 hash of a string.
func hashString(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

package cache

import "fmt"

// StreamCounterKey is the per-user active-CSV-stream counter key, used to
// enforce DB_MAX_STREAMS_PER_USER across API instances when Redis is
// configured.
func StreamCounterKey(userID string) string {
	return fmt.Sprintf("stream:active:%s", userID)
}

// EntitlementKey caches the resolved Entitlement for a (userId, formatId)
// pair, invalidated on entitlement POST/DELETE.
func EntitlementKey(userID string, formatID int64) string {
	return fmt.Sprintf("entitlement:%s:%d", userID, formatID)
}

package model

import "time"

// APIKey represents an API key used to authenticate price requests on behalf
// of an account. The raw key is never stored; only a SHA-256 hash and a short
// prefix for identification are persisted.
type APIKey struct {
	ID         int64      `json:"id" db:"id"`
	KeyHash    string     `json:"-" db:"key_hash"`            // SHA-256 hash, never expose
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"` // First 8 chars for identification
	Label      string     `json:"label" db:"label"`
	AccountID  int64      `json:"account_id" db:"account_id"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsed   *time.Time `json:"last_used,omitempty" db:"last_used"`
	UsageCount int64      `json:"usage_count" db:"usage_count"`
}

// KeyStats aggregates usage across all of an account's keys.
type KeyStats struct {
	TotalKeys  int   `json:"total_keys" db:"total_keys"`
	ActiveKeys int   `json:"active_keys" db:"active_keys"`
	TotalUsage int64 `json:"total_usage" db:"total_usage"`
}

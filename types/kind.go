// Package types provides common types used across Tally.
package types

import "strconv"

// Kind identifies one of the independently tracked ledgers. The string
// value doubles as the durable table/collection name and the first segment
// of the cache key namespace.
type Kind string

const (
	// KindCurrency is the credit balance ledger.
	KindCurrency Kind = "currency"

	// KindExperience is the experience score ledger. The durable table
	// and cache namespace are named "levels".
	KindExperience Kind = "levels"
)

// Kinds lists every ledger kind. Warm-up iterates this.
var Kinds = []Kind{KindCurrency, KindExperience}

// Valid reports whether k names a known ledger kind.
func (k Kind) Valid() bool {
	return k == KindCurrency || k == KindExperience
}

// Field returns the value column name for the kind ("balance" or
// "experience"), which is also the last segment of the cache key.
func (k Kind) Field() string {
	if k == KindCurrency {
		return "balance"
	}
	return "experience"
}

// CacheKey returns the cache key for a subject's value in this ledger,
// in the form "<kind>:<subjectID>:<field>".
func (k Kind) CacheKey(subjectID int64) string {
	return string(k) + ":" + strconv.FormatInt(subjectID, 10) + ":" + k.Field()
}

// ClampOnRemove reports whether removals are clamped to the subject's
// persisted value so it never goes negative. Experience clamps; currency
// does not.
func (k Kind) ClampOnRemove() bool {
	return k == KindExperience
}

// Row is a single ledger entry as stored durably.
type Row struct {
	SubjectID int64 `json:"subject_id"`
	Value     int64 `json:"value"`
}

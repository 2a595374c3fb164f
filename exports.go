package tally

import "github.com/kyomi-dev/tally/types"

// Re-export common types for convenience so users don't have to import types package.

// Kind is re-exported from types package.
type Kind = types.Kind

// Row is re-exported from types package.
type Row = types.Row

// Re-export the ledger kinds.
const (
	KindCurrency   = types.KindCurrency
	KindExperience = types.KindExperience
)

// Kinds is re-exported from types package.
var Kinds = types.Kinds

package postgres

import "github.com/xraph/grove"

// currencyModel mirrors the "currency" table: one row per subject, no
// enforced lower bound on the balance.
type currencyModel struct {
	grove.BaseModel `grove:"table:currency"`

	ID      int64 `grove:"id,pk"`
	Balance int64 `grove:"balance"`
}

// levelModel mirrors the "levels" table.
type levelModel struct {
	grove.BaseModel `grove:"table:levels"`

	ID         int64 `grove:"id,pk"`
	Experience int64 `grove:"experience"`
}

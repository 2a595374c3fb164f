package mongo

import "github.com/xraph/grove"

type currencyModel struct {
	grove.BaseModel `grove:"table:currency"`

	ID      int64 `grove:"id,pk"   bson:"_id"`
	Balance int64 `grove:"balance" bson:"balance"`
}

type levelModel struct {
	grove.BaseModel `grove:"table:levels"`

	ID         int64 `grove:"id,pk"      bson:"_id"`
	Experience int64 `grove:"experience" bson:"experience"`
}

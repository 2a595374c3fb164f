package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tally store. The history
// is append-only: the levels table predates the currency table.
var Migrations = migrate.NewGroup("tally")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_levels_table",
			Version: "20221223000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS levels (
    id         INTEGER PRIMARY KEY,
    experience INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS levels`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_currency_table",
			Version: "20221226000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS currency (
    id      INTEGER PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS currency`)
				return err
			},
		},
	)
}

package signup

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

var schemaModels = []any{
	(*User)(nil),
	(*SessionRecord)(nil),
	(*Comment)(nil),
}

// CreateSchema creates the users, sessions and comments tables if they
// do not exist yet
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create schema")
		}
	}

	_, err := db.NewCreateIndex().
		Model((*Comment)(nil)).
		Index("comments_post_id_idx").
		Column("post_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create comments index")
	}

	return nil
}

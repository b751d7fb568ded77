package signup

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var _ CommentStore = (*CommentRepository)(nil)

// Comments stores comments on posts
type Comments interface {
	CommentStore
	ListByPost(ctx context.Context, postID string) ([]*Comment, error)
}

// CommentRepository implements Comments using Bun.
type CommentRepository struct {
	db *bun.DB
}

// NewCommentRepository creates a new repository.
func NewCommentRepository(db *bun.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// SaveComment implements CommentStore.
func (r *CommentRepository) SaveComment(ctx context.Context, input CommentInput) (CommentHandle, error) {
	authorID, err := uuid.Parse(strings.TrimSpace(input.Author))
	if err != nil {
		return CommentHandle{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid comment author")
	}

	now := time.Now()
	model := &Comment{
		ID:        uuid.New(),
		AuthorID:  authorID,
		PostID:    strings.TrimSpace(input.Post),
		Body:      input.Body,
		CreatedAt: &now,
	}

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return CommentHandle{}, goerrors.Wrap(err, goerrors.CategoryInternal, "could not save comment")
	}

	return CommentHandle{ID: model.ID}, nil
}

// ListByPost returns the comments of a post, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]*Comment, error) {
	var comments []*Comment
	err := r.db.NewSelect().
		Model(&comments).
		Where("?TableAlias.post_id = ?", postID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

package signup

import (
	"context"
)

// CommentController saves a comment and sends the user back to the
// success path. By default a failed comment is reported and still
// navigates away.
type CommentController struct {
	workflow
	store   CommentStore
	pending *PendingFlag
	form    *FormState[CommentInput]
}

func NewCommentController(store CommentStore, notifier Notifier, navigator Navigator, opts ...ControllerOption) *CommentController {
	return &CommentController{
		workflow: newWorkflow(flowComment, notifier, navigator, nil, opts),
		store:    store,
		pending:  &PendingFlag{},
		form:     NewFormState(CommentInput{}),
	}
}

func (c *CommentController) Form() *FormState[CommentInput] {
	return c.form
}

// Busy is true while a save is in flight
func (c *CommentController) Busy() bool {
	return c.pending.Pending()
}

// Submit saves input
func (c *CommentController) Submit(ctx context.Context, input CommentInput) Result[CommentHandle] {
	c.form.Set(input)

	ctx, cancel := context.WithTimeout(ctx, c.workflowTimeout)
	defer cancel()

	res := runStep(ctx, &c.workflow, "save_comment", c.pending, func(ctx context.Context) Result[CommentHandle] {
		return Collect(c.store.SaveComment(ctx, input))
	})

	if res.OK() {
		c.metrics.ObserveOutcome(c.flow, "success")
		c.record(ctx, ActivityEvent{
			EventType: ActivityEventCommentPosted,
			UserID:    input.Author,
			Outcome:   "success",
			Metadata: map[string]any{
				"post_id":    input.Post,
				"comment_id": res.Value.ID.String(),
			},
		})
		c.navigate(ctx, c.successPath)
		return res
	}

	c.metrics.ObserveOutcome(c.flow, "failed")
	c.logger.Error("comment on post %s: %v", input.Post, res.Err)
	c.record(ctx, ActivityEvent{
		EventType: ActivityEventCommentFailed,
		UserID:    input.Author,
		Outcome:   "failed",
		Metadata:  failureMetadata("save_comment", res.Err),
	})
	c.notify(ctx, CommentRetryMessage)

	if !c.stayOnCommentFailure {
		c.navigate(ctx, c.successPath)
	}

	return res
}

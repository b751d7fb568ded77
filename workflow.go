package signup

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	flowSignup  = "signup"
	flowSignin  = "signin"
	flowComment = "comment"
)

// ControllerOption configures the signup, sign in and comment controllers
type ControllerOption func(*workflow)

// WithLogger sets the logger
func WithLogger(logger Logger) ControllerOption {
	return func(w *workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithActivitySink records one event per submission
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(w *workflow) {
		w.activity = normalizeActivitySink(sink)
	}
}

// WithMetrics records outcomes and step latencies
func WithMetrics(m *Metrics) ControllerOption {
	return func(w *workflow) {
		w.metrics = m
	}
}

// WithTracer sets the tracer used for workflow and step spans
func WithTracer(tracer trace.Tracer) ControllerOption {
	return func(w *workflow) {
		if tracer != nil {
			w.tracer = tracer
		}
	}
}

// WithTimeouts sets the per step and the whole workflow deadlines.
// Non positive values keep the defaults.
func WithTimeouts(step, total time.Duration) ControllerOption {
	return func(w *workflow) {
		if step > 0 {
			w.stepTimeout = step
		}
		if total > 0 {
			w.workflowTimeout = total
		}
	}
}

// WithSuccessPath sets where a successful submission navigates to
func WithSuccessPath(path string) ControllerOption {
	return func(w *workflow) {
		if path != "" {
			w.successPath = path
		}
	}
}

// WithConfig applies the timeouts and redirect of cfg
func WithConfig(cfg Config) ControllerOption {
	return func(w *workflow) {
		if cfg == nil {
			return
		}
		WithTimeouts(cfg.GetStepTimeout(), cfg.GetWorkflowTimeout())(w)
		WithSuccessPath(cfg.GetSuccessRedirect())(w)
	}
}

// WithSubmissionLock serializes submissions on lock instead of the
// session context
func WithSubmissionLock(lock SubmissionLock) ControllerOption {
	return func(w *workflow) {
		w.lock = lock
	}
}

// WithPendingFlags shares the account and session pending flags between
// controllers of the same client
func WithPendingFlags(account, session *PendingFlag) ControllerOption {
	return func(w *workflow) {
		if account != nil {
			w.accountPending = account
		}
		if session != nil {
			w.sessionPending = session
		}
	}
}

// WithStayOnCommentFailure keeps the user on the page when a comment
// could not be saved
func WithStayOnCommentFailure() ControllerOption {
	return func(w *workflow) {
		w.stayOnCommentFailure = true
	}
}

type workflow struct {
	flow      string
	notifier  Notifier
	navigator Navigator
	logger    Logger
	activity  ActivitySink
	metrics   *Metrics
	tracer    trace.Tracer

	stepTimeout     time.Duration
	workflowTimeout time.Duration
	successPath     string

	lock           SubmissionLock
	accountPending *PendingFlag
	sessionPending *PendingFlag

	stayOnCommentFailure bool
}

func newWorkflow(flow string, notifier Notifier, navigator Navigator, session SessionContext, opts []ControllerOption) workflow {
	defaults := DefaultOptions()
	w := workflow{
		flow:            flow,
		notifier:        notifier,
		navigator:       navigator,
		logger:          defLogger{},
		activity:        noopActivitySink{},
		tracer:          defaultTracer(),
		stepTimeout:     defaults.StepTimeout,
		workflowTimeout: defaults.WorkflowTimeout,
		successPath:     defaults.SuccessRedirect,
		accountPending:  &PendingFlag{},
		sessionPending:  &PendingFlag{},
	}

	if lock, ok := session.(SubmissionLock); ok {
		w.lock = lock
	}

	for _, opt := range opts {
		opt(&w)
	}

	if w.lock == nil {
		w.lock = newChanLock()
	}

	return w
}

func (w *workflow) exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return w.lock.Exclusive(ctx, fn)
}

// terminal maps a failed step to its outcome. A done workflow context
// wins over the step.
func (w *workflow) terminal(ctx context.Context, failed Outcome) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	return failed
}

func (w *workflow) notify(ctx context.Context, title string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(context.WithoutCancel(ctx), Notification{Title: title})
}

func (w *workflow) navigate(ctx context.Context, path string) {
	if w.navigator == nil {
		return
	}
	w.navigator.Navigate(context.WithoutCancel(ctx), path)
}

func (w *workflow) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := w.activity.Record(context.WithoutCancel(ctx), event); err != nil {
		w.logger.Warn("activity sink error: %v", err)
	}
}

func failureMetadata(step string, cause error) map[string]any {
	meta := map[string]any{"step": step}
	if cause != nil {
		meta["error"] = cause.Error()
		if code := textCode(cause); code != "" {
			meta["text_code"] = code
		}
	}
	return meta
}

// outcomeMetadata is failureMetadata for the step an outcome failed at,
// tagged with the outcome's own text code
func outcomeMetadata(outcome Outcome, cause error) map[string]any {
	meta := failureMetadata(failedStep(outcome), cause)
	meta["outcome_code"] = textCode(outcome.Err())
	return meta
}

// runStep makes one backend call under its own deadline and span. The
// pending flag is held until the call settles. A panic becomes a
// failed result.
func runStep[T any](ctx context.Context, w *workflow, step string, flag *PendingFlag, call func(ctx context.Context) Result[T]) (res Result[T]) {
	done := flag.Begin()
	defer done()

	ctx, cancel := context.WithTimeout(ctx, w.stepTimeout)
	defer cancel()

	ctx, span := startSpan(ctx, w.tracer, w.flow+"."+step,
		attribute.String("signup.flow", w.flow),
		attribute.String("signup.step", step),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = Fail[T](goerrors.New(fmt.Sprintf("%s step panicked: %v", step, r), goerrors.CategoryInternal))
		}
		w.metrics.ObserveStep(w.flow, step, res.OK(), time.Since(start))
		endSpan(span, res.Err)
	}()

	return call(ctx)
}

type chanLock chan struct{}

func newChanLock() chanLock {
	return make(chanLock, 1)
}

func (l chanLock) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l }()

	return fn(ctx)
}

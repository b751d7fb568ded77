package signup

import (
	"context"
	"time"
)

// SignupController runs the signup workflow: provision the account,
// create a session with the same credentials, then verify it. Every
// failure ends the submission with the same notification.
type SignupController struct {
	workflow
	accounts AccountProvisioner
	sessions SessionCreator
	session  SessionContext
	form     *FormState[SubmissionInput]
}

func NewSignupController(
	accounts AccountProvisioner,
	sessions SessionCreator,
	session SessionContext,
	notifier Notifier,
	navigator Navigator,
	opts ...ControllerOption,
) *SignupController {
	return &SignupController{
		workflow: newWorkflow(flowSignup, notifier, navigator, session, opts),
		accounts: accounts,
		sessions: sessions,
		session:  session,
		form:     NewFormState(SubmissionInput{}),
	}
}

// Form returns the captured form values
func (c *SignupController) Form() *FormState[SubmissionInput] {
	return c.form
}

// BusyState reads the three pending sources now
func (c *SignupController) BusyState() BusyState {
	return readBusyState(c.accountPending, c.sessionPending, c.session)
}

// Busy is true while any step or session refresh is in flight
func (c *SignupController) Busy() bool {
	return c.BusyState().Busy()
}

// Submit runs one workflow instance for input. Submissions that share
// a session context run one at a time.
func (c *SignupController) Submit(ctx context.Context, input SubmissionInput) Outcome {
	c.form.Set(input)

	ctx, cancel := context.WithTimeout(ctx, c.workflowTimeout)
	defer cancel()

	ctx, span := startSpan(ctx, c.tracer, "signup.submit")
	start := time.Now()

	var (
		outcome Outcome
		account AccountHandle
		cause   error
	)

	err := c.exclusive(ctx, func(ctx context.Context) error {
		outcome, account, cause = c.run(ctx, input)
		return nil
	})
	if err != nil {
		outcome, cause = OutcomeCancelled, err
	}

	endSpan(span, cause)
	c.finish(ctx, outcome, account, cause, time.Since(start))

	return outcome
}

func (c *SignupController) run(ctx context.Context, input SubmissionInput) (Outcome, AccountHandle, error) {
	account := runStep(ctx, &c.workflow, "provision", c.accountPending, func(ctx context.Context) Result[AccountHandle] {
		return Collect(c.accounts.Provision(ctx, input))
	})
	if !account.OK() {
		return c.terminal(ctx, OutcomeAccountCreationFailed), AccountHandle{}, account.Err
	}

	creds := Credentials{Email: input.Email, Password: input.Password}
	session := runStep(ctx, &c.workflow, "create_session", c.sessionPending, func(ctx context.Context) Result[SessionHandle] {
		return Collect(c.sessions.CreateSession(ctx, creds))
	})
	if !session.OK() {
		return c.terminal(ctx, OutcomeSessionCreationFailed), account.Value, session.Err
	}

	verified := runStep(ctx, &c.workflow, "verify_session", nil, func(ctx context.Context) Result[bool] {
		return Check(c.session.CheckAuthUser(ctx))
	})
	if !verified.OK() {
		return c.terminal(ctx, OutcomeVerificationFailed), account.Value, verified.Err
	}

	return OutcomeSuccess, account.Value, nil
}

func (c *SignupController) finish(ctx context.Context, outcome Outcome, account AccountHandle, cause error, elapsed time.Duration) {
	c.metrics.ObserveOutcome(c.flow, outcome.String())

	userID := ""
	if !account.IsZero() {
		userID = account.ID.String()
	}

	if outcome == OutcomeSuccess {
		c.form.Reset()
		c.navigate(ctx, c.successPath)
		c.logger.Info("signup succeeded for %s in %s", account.Username, elapsed)
		c.record(ctx, ActivityEvent{
			EventType: ActivityEventSignupSucceeded,
			UserID:    userID,
			Outcome:   outcome.String(),
		})
		return
	}

	c.logger.Error("signup %s: %v", outcome, cause)
	c.record(ctx, ActivityEvent{
		EventType: ActivityEventSignupFailed,
		UserID:    userID,
		Outcome:   outcome.String(),
		Metadata:  outcomeMetadata(outcome, cause),
	})
	c.notify(ctx, GenericRetryMessage)
}

func failedStep(outcome Outcome) string {
	switch outcome {
	case OutcomeAccountCreationFailed:
		return "provision"
	case OutcomeSessionCreationFailed:
		return "create_session"
	case OutcomeVerificationFailed:
		return "verify_session"
	default:
		return "workflow"
	}
}

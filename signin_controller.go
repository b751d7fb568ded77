package signup

import (
	"context"
)

// SigninController exchanges credentials for a session and verifies it
type SigninController struct {
	workflow
	sessions SessionCreator
	session  SessionContext
	form     *FormState[Credentials]
}

func NewSigninController(
	sessions SessionCreator,
	session SessionContext,
	notifier Notifier,
	navigator Navigator,
	opts ...ControllerOption,
) *SigninController {
	return &SigninController{
		workflow: newWorkflow(flowSignin, notifier, navigator, session, opts),
		sessions: sessions,
		session:  session,
		form:     NewFormState(Credentials{}),
	}
}

func (c *SigninController) Form() *FormState[Credentials] {
	return c.form
}

func (c *SigninController) BusyState() BusyState {
	return readBusyState(nil, c.sessionPending, c.session)
}

func (c *SigninController) Busy() bool {
	return c.BusyState().Busy()
}

// Submit signs the user in. Failures notify SigninRetryMessage.
func (c *SigninController) Submit(ctx context.Context, creds Credentials) Outcome {
	c.form.Set(creds)

	ctx, cancel := context.WithTimeout(ctx, c.workflowTimeout)
	defer cancel()

	ctx, span := startSpan(ctx, c.tracer, "signin.submit")

	var (
		outcome Outcome
		cause   error
	)

	err := c.exclusive(ctx, func(ctx context.Context) error {
		outcome, cause = c.run(ctx, creds)
		return nil
	})
	if err != nil {
		outcome, cause = OutcomeCancelled, err
	}

	endSpan(span, cause)
	c.metrics.ObserveOutcome(c.flow, outcome.String())

	if outcome == OutcomeSuccess {
		c.form.Reset()
		c.navigate(ctx, c.successPath)
		c.record(ctx, ActivityEvent{
			EventType: ActivityEventSigninSucceeded,
			Outcome:   outcome.String(),
		})
		return outcome
	}

	c.logger.Error("signin %s: %v", outcome, cause)
	c.record(ctx, ActivityEvent{
		EventType: ActivityEventSigninFailed,
		Outcome:   outcome.String(),
		Metadata:  outcomeMetadata(outcome, cause),
	})
	c.notify(ctx, SigninRetryMessage)

	return outcome
}

func (c *SigninController) run(ctx context.Context, creds Credentials) (Outcome, error) {
	session := runStep(ctx, &c.workflow, "create_session", c.sessionPending, func(ctx context.Context) Result[SessionHandle] {
		return Collect(c.sessions.CreateSession(ctx, creds))
	})
	if !session.OK() {
		return c.terminal(ctx, OutcomeSessionCreationFailed), session.Err
	}

	verified := runStep(ctx, &c.workflow, "verify_session", nil, func(ctx context.Context) Result[bool] {
		return Check(c.session.CheckAuthUser(ctx))
	})
	if !verified.OK() {
		return c.terminal(ctx, OutcomeVerificationFailed), verified.Err
	}

	return OutcomeSuccess, nil
}

package signup

import "time"

var _ Config = Options{}

// Options is the default Config implementation. Zero fields fall back
// to the values in DefaultOptions.
type Options struct {
	SigningKey      string        `mapstructure:"signing_key" json:"signing_key"`
	TokenExpiration int           `mapstructure:"token_expiration" json:"token_expiration"`
	Issuer          string        `mapstructure:"issuer" json:"issuer"`
	Audience        []string      `mapstructure:"audience" json:"audience"`
	ContextKey      string        `mapstructure:"context_key" json:"context_key"`
	ClientKey       string        `mapstructure:"client_key" json:"client_key"`
	SuccessRedirect string        `mapstructure:"success_redirect" json:"success_redirect"`
	StepTimeout     time.Duration `mapstructure:"step_timeout" json:"step_timeout"`
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout" json:"workflow_timeout"`
	PasswordCost    int           `mapstructure:"password_cost" json:"password_cost"`
	SubmissionRate  float64       `mapstructure:"submission_rate" json:"submission_rate"`
	SubmissionBurst int           `mapstructure:"submission_burst" json:"submission_burst"`
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TokenExpiration: 24,
		Issuer:          "go-signup",
		ContextKey:      "signup_session",
		ClientKey:       "signup_client",
		SuccessRedirect: "/",
		StepTimeout:     10 * time.Second,
		WorkflowTimeout: 30 * time.Second,
		PasswordCost:    12,
		SubmissionRate:  1,
		SubmissionBurst: 5,
	}
}

func (o Options) GetSigningKey() string {
	return o.SigningKey
}

func (o Options) GetTokenExpiration() int {
	if o.TokenExpiration <= 0 {
		return DefaultOptions().TokenExpiration
	}
	return o.TokenExpiration
}

func (o Options) GetIssuer() string {
	if o.Issuer == "" {
		return DefaultOptions().Issuer
	}
	return o.Issuer
}

func (o Options) GetAudience() []string {
	return o.Audience
}

func (o Options) GetContextKey() string {
	if o.ContextKey == "" {
		return DefaultOptions().ContextKey
	}
	return o.ContextKey
}

func (o Options) GetClientKey() string {
	if o.ClientKey == "" {
		return DefaultOptions().ClientKey
	}
	return o.ClientKey
}

func (o Options) GetSuccessRedirect() string {
	if o.SuccessRedirect == "" {
		return DefaultOptions().SuccessRedirect
	}
	return o.SuccessRedirect
}

func (o Options) GetStepTimeout() time.Duration {
	if o.StepTimeout <= 0 {
		return DefaultOptions().StepTimeout
	}
	return o.StepTimeout
}

func (o Options) GetWorkflowTimeout() time.Duration {
	if o.WorkflowTimeout <= 0 {
		return DefaultOptions().WorkflowTimeout
	}
	return o.WorkflowTimeout
}

func (o Options) GetPasswordCost() int {
	if o.PasswordCost <= 0 {
		return DefaultOptions().PasswordCost
	}
	return o.PasswordCost
}

func (o Options) GetSubmissionRate() float64 {
	if o.SubmissionRate <= 0 {
		return DefaultOptions().SubmissionRate
	}
	return o.SubmissionRate
}

func (o Options) GetSubmissionBurst() int {
	if o.SubmissionBurst <= 0 {
		return DefaultOptions().SubmissionBurst
	}
	return o.SubmissionBurst
}

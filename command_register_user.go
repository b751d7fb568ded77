package signup

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

var _ AccountProvisioner = (*RegisterUserHandler)(nil)

type RegisterUserMessage struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	UseHashid bool
}

// RegisterUserHandler provisions accounts in the users table
type RegisterUserHandler struct {
	repo         RepositoryManager
	passwordCost int
	useHashid    bool
	timeout      time.Duration
	logger       Logger
}

// RegisterUserOption configures a RegisterUserHandler
type RegisterUserOption func(*RegisterUserHandler)

// WithPasswordCost sets the bcrypt cost
func WithPasswordCost(cost int) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		h.passwordCost = cost
	}
}

// WithHashidIDs derives user IDs from the email address
func WithHashidIDs(enabled bool) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		h.useHashid = enabled
	}
}

// WithRegisterLogger sets the logger
func WithRegisterLogger(logger Logger) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewRegisterUserHandler creates a provisioner backed by repo
func NewRegisterUserHandler(repo RepositoryManager, opts ...RegisterUserOption) *RegisterUserHandler {
	h := &RegisterUserHandler{
		repo:         repo,
		passwordCost: DefaultOptions().PasswordCost,
		timeout:      DefaultOptions().StepTimeout,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Provision implements AccountProvisioner.
func (h *RegisterUserHandler) Provision(ctx context.Context, input SubmissionInput) (AccountHandle, error) {
	user, err := h.Register(ctx, RegisterUserMessage{
		Name:      input.Name,
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		UseHashid: h.useHashid,
	})
	if err != nil {
		return AccountHandle{}, err
	}
	return AccountHandle{ID: user.ID, Username: user.Username}, nil
}

// Register creates the user and returns the stored record
func (h *RegisterUserHandler) Register(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPasswordWithCost(event.Password, h.passwordCost)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = strings.TrimSpace(event.Email)
		user.Name = strings.TrimSpace(event.Name)
		user.Username = getUsername(event.Username, event.Email)
		user.Role = event.Role
		if event.UseHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		user, err = h.repo.Users().RegisterTx(ctx, tx, user)
		return err
	})

	if err != nil {
		h.logger.Debug("register user %s failed: %v", event.Email, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

func getUsername(username, email string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(strings.TrimSpace(email), "@")[0]
	}

	return username
}

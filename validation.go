package signup

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	maxNameLength     = 100
	maxCommentLength  = 2200
	minPasswordLength = 6
)

// Validate will validate the payload
func (r SubmissionInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.Username, validation.Required, validation.Length(2, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 100)),
	)
}

// Validate will validate the payload
func (r Credentials) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 100)),
	)
}

// Validate will validate the payload
func (r CommentInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Author, validation.Required, is.UUID),
		validation.Field(&r.Post, validation.Required),
		validation.Field(&r.Body, validation.Required, validation.Length(1, maxCommentLength)),
	)
}

// FormatValidationErrorToMap flattens ozzo errors into field -> message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

// ValidateStringEquals checks a field matches str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

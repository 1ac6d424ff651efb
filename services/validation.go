package services

import (
	goerrors "errors"
	"fmt"
	"huddle/domain"
	"huddle/errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("message_type", func(fl validator.FieldLevel) bool {
		return lo.Contains(domain.MessageTypes, domain.MessageType(fl.Field().String()))
	})
	return v
}

type sendRequest struct {
	SenderID string `validate:"required"`
	Content  string `validate:"required"`
	Type     string `validate:"omitempty,message_type"`
	MediaURL string `validate:"omitempty,url"`
}

// validateSend rejects a command before any store call.
// It returns the content to persist, trimmed.
func validateSend(cmd domain.SendMessageCommand, maxContentLength int) (string, error) {
	content := strings.TrimSpace(cmd.Content)
	err := validate.Struct(sendRequest{
		SenderID: cmd.SenderID,
		Content:  content,
		Type:     string(cmd.Type),
		MediaURL: cmd.MediaURL,
	})
	if err != nil {
		return "", toValidationError(err)
	}
	if maxContentLength > 0 {
		if err := validate.Var(content, fmt.Sprintf("max=%d", maxContentLength)); err != nil {
			return "", errors.ErrContentTooLong
		}
	}

	scope := cmd.Scope
	switch {
	case !scope.Valid():
		return "", errors.ErrMissingScope
	case scope.Kind == domain.ScopeInbox:
		return "", errors.ErrUnsupportedScope
	case scope.Kind == domain.ScopePrivate && !scope.HasMember(cmd.SenderID):
		return "", errors.ErrSenderNotInScope
	}
	return content, nil
}

func toValidationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !goerrors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	first := fieldErrors[0]
	switch first.Field() {
	case "Content":
		return errors.ErrBlankContent
	case "SenderID":
		return errors.ErrMissingSender
	default:
		return fmt.Errorf("%w: %s failed on %s", errors.ErrInvalidMessage, first.Field(), first.Tag())
	}
}

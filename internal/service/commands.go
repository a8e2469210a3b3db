package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StartGameCommand starts or resumes a riddle
type StartGameCommand struct {
	RiddleID int64  `validate:"required,gt=0"`
	UserID   int64  `validate:"required,gt=0"`
	Password string `validate:"max=255"`
}

// SessionCommand addresses an existing game session on behalf of a user
type SessionCommand struct {
	SessionID int64 `validate:"required,gt=0"`
	UserID    int64 `validate:"required,gt=0"`
}

// UnlockHintCommand unlocks a hint of the current step
type UnlockHintCommand struct {
	SessionID int64 `validate:"required,gt=0"`
	UserID    int64 `validate:"required,gt=0"`
	HintOrder int   `validate:"gte=1"`
}

// ValidateStepCommand submits the code scanned at the current step
type ValidateStepCommand struct {
	SessionID int64  `validate:"required,gt=0"`
	UserID    int64  `validate:"required,gt=0"`
	Code      string `validate:"required,max=255"`
}

func (c StartGameCommand) Validate() error    { return validateCommand(c) }
func (c SessionCommand) Validate() error      { return validateCommand(c) }
func (c UnlockHintCommand) Validate() error   { return validateCommand(c) }
func (c ValidateStepCommand) Validate() error { return validateCommand(c) }

func (c UnlockHintCommand) session() SessionCommand {
	return SessionCommand{SessionID: c.SessionID, UserID: c.UserID}
}

func (c ValidateStepCommand) session() SessionCommand {
	return SessionCommand{SessionID: c.SessionID, UserID: c.UserID}
}

func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrBadRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

package errs

import (
	"errors"
	"fmt"
)

// Error kinds reported to API callers in the response payload.
var (
	ErrValidation     = errors.New("validation error")
	ErrNoUpdateFields = errors.New("no update fields")
	ErrInvalidID      = errors.New("invalid id")
)

const (
	MsgRequiredFieldsMissing = "required field(s) missing"
	MsgMissingID             = "missing _id"
	MsgNoUpdateFields        = "no update field(s) sent"
	MsgCouldNotUpdate        = "could not update"
	MsgCouldNotDelete        = "could not delete"
)

// IssueError is a terminal outcome of an issue operation. It unwraps to one
// of the kinds above. When EchoID is set the offending id is returned to the
// caller next to the message.
type IssueError struct {
	Kind    error
	Message string
	ID      string
	EchoID  bool
}

func (e *IssueError) Error() string {
	if e.EchoID {
		return fmt.Sprintf("%s (_id %q)", e.Message, e.ID)
	}
	return e.Message
}

func (e *IssueError) Unwrap() error { return e.Kind }

func RequiredFieldsMissing() error {
	return &IssueError{Kind: ErrValidation, Message: MsgRequiredFieldsMissing}
}

func MissingID() error {
	return &IssueError{Kind: ErrValidation, Message: MsgMissingID}
}

func NoUpdateFields(id string) error {
	return &IssueError{Kind: ErrNoUpdateFields, Message: MsgNoUpdateFields, ID: id, EchoID: true}
}

func CouldNotUpdate(id string) error {
	return &IssueError{Kind: ErrInvalidID, Message: MsgCouldNotUpdate, ID: id, EchoID: true}
}

func CouldNotDelete(id string) error {
	return &IssueError{Kind: ErrInvalidID, Message: MsgCouldNotDelete, ID: id, EchoID: true}
}

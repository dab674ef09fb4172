package biz

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

// DomainError is an application level failure carrying an error code, an
// optional subtype and a message.
type DomainError struct {
	errorCode string
	typ       string
	message   string
}

// NewDomainError creates a DomainError.
func NewDomainError(errorCode, typ, message string) *DomainError {
	return &DomainError{errorCode: errorCode, typ: typ, message: message}
}

func (e *DomainError) ErrorCode() string             { return e.errorCode }
func (e *DomainError) SetErrorCode(errorCode string) { e.errorCode = errorCode }
func (e *DomainError) Type() string                  { return e.typ }
func (e *DomainError) SetType(typ string)            { e.typ = typ }
func (e *DomainError) Message() string               { return e.message }
func (e *DomainError) SetMessage(message string)     { e.message = message }

func (e *DomainError) Error() string {
	if e.typ == "" {
		return fmt.Sprintf("%s: %s", e.errorCode, e.message)
	}
	return fmt.Sprintf("%s[%s]: %s", e.errorCode, e.typ, e.message)
}

// ToKratos converts the error for transport with the given status code.
// The subtype becomes the reason; the error code travels in metadata.
func (e *DomainError) ToKratos(code int) *errors.Error {
	reason := e.typ
	if reason == "" {
		reason = "DOMAIN"
	}
	return errors.New(code, reason, e.message).WithMetadata(map[string]string{
		"error_code": e.errorCode,
	})
}

var (
	// ErrNoActiveTransaction is returned when a change is recorded outside a
	// tracked transaction.
	ErrNoActiveTransaction = NewDomainError("TX_NOT_ACTIVE", "TRANSACTION", "no active tracked transaction")
	// ErrInvalidChange is returned for changes missing their entity or action.
	ErrInvalidChange = NewDomainError("CHANGE_INVALID", "VALIDATION", "change requires entity, entity id and action")
	// ErrEmptyChangeSet is returned when a batch without changes is applied.
	ErrEmptyChangeSet = NewDomainError("CHANGE_SET_EMPTY", "VALIDATION", "at least one change is required")
	// ErrInvalidToken is returned when a lookup is made without a token.
	ErrInvalidToken = NewDomainError("TOKEN_INVALID", "VALIDATION", "transaction token is required")
)

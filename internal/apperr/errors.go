// Package apperr defines the error taxonomy of the chat subsystem.
// Every error carries a stable Code; errors.Is matches on the code so callers can test
// against the exported sentinels regardless of the message or the wrapped cause.
package apperr

import (
	"errors"
	"net/http"
)

type Code string

// Standard error codes for the chat subsystem
const (
	CodeInvalidRequest                 Code = "INVALID_REQUEST"
	CodeRoomNotFound                   Code = "ROOM_NOT_FOUND"
	CodeMessageNotFound                Code = "MESSAGE_NOT_FOUND"
	CodeUserNotFound                   Code = "USER_NOT_FOUND"
	CodeUserNotInRoom                  Code = "USER_NOT_IN_ROOM"
	CodeSenderCannotMarkOwnMessageRead Code = "SENDER_CANNOT_MARK_OWN_MESSAGE_READ"
	CodePersistence                    Code = "PERSISTENCE_ERROR"
	CodeUnauthorized                   Code = "UNAUTHORIZED"
)

type Error struct {
	Code    Code
	Message string
	Origin  error // Original error that caused this error, if any
}

func (e *Error) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Origin
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidRequest                 = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrRoomNotFound                   = &Error{Code: CodeRoomNotFound, Message: "chat room not found"}
	ErrMessageNotFound                = &Error{Code: CodeMessageNotFound, Message: "message not found"}
	ErrUserNotFound                   = &Error{Code: CodeUserNotFound, Message: "user not found"}
	ErrUserNotInRoom                  = &Error{Code: CodeUserNotInRoom, Message: "user is not a participant of this room"}
	ErrSenderCannotMarkOwnMessageRead = &Error{Code: CodeSenderCannotMarkOwnMessageRead, Message: "sender cannot mark own message as read"}
	ErrPersistence                    = &Error{Code: CodePersistence, Message: "persistence error"}
	ErrUnauthorized                   = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
)

func New(code Code, message string, origin error) *Error {
	return &Error{Code: code, Message: message, Origin: origin}
}

func InvalidRequest(message string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "invalid request: " + message}
}

func RoomNotFound(roomID string) *Error {
	return &Error{Code: CodeRoomNotFound, Message: "chat room not found: " + roomID}
}

func UserNotFound(ref string) *Error {
	return &Error{Code: CodeUserNotFound, Message: "user not found: " + ref}
}

// Persistence wraps a store failure. Errors that already carry a code pass through.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Code: CodePersistence, Message: op, Origin: err}
}

// CodeOf returns the code of err, or CodePersistence for foreign errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodePersistence
}

// HTTPStatus maps an error onto the response status used by the REST surface.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeRoomNotFound, CodeMessageNotFound, CodeUserNotFound:
		return http.StatusNotFound
	case CodeUserNotInRoom:
		return http.StatusForbidden
	case CodeSenderCannotMarkOwnMessageRead:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides the wrapped cause of server-side failures.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Code == CodePersistence {
		return ErrPersistence.Message
	}
	return appErr.Message
}

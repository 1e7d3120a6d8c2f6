package apperr

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an operation failure so the transport layer can map it
// to a response without inspecting message text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or 0 for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ToFiber converts a service error into the fiber error the handler returns.
// Untyped errors are treated as storage unavailability.
func ToFiber(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
	}
	switch e.Kind {
	case KindValidation:
		return fiber.NewError(fiber.StatusBadRequest, e.Msg)
	case KindUnauthenticated:
		return fiber.NewError(fiber.StatusUnauthorized, e.Msg)
	case KindForbidden:
		return fiber.NewError(fiber.StatusForbidden, e.Msg)
	case KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, e.Msg)
	case KindConflict:
		return fiber.NewError(fiber.StatusConflict, e.Msg)
	case KindUnavailable:
		return fiber.NewError(fiber.StatusServiceUnavailable, e.Msg)
	}
	return fiber.NewError(fiber.StatusInternalServerError, e.Msg)
}

// Advisory records a non-fatal side-effect failure. Callers continue and
// still report success; the database record is authoritative.
func Advisory(op string, err error) {
	if err == nil {
		return
	}
	log.Printf("advisory: %s: %v", op, err)
}

// Package errors defines the service's root errors.
//
// Every failure surfaced to a caller wraps exactly one registered root error.
// The root carries a stable numeric code, a category name used on the wire,
// and a retry class telling the caller whether repeating the same request can
// succeed.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Class tells a caller whether retrying the same request may succeed.
type Class uint8

const (
	// Permanent errors reproduce on every retry with the same input.
	Permanent Class = iota
	// Transient errors depend on an external collaborator and may clear.
	Transient
)

// String returns the class name.
func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

var (
	// ErrInvalidKeySet is returned when a key set does not hold exactly three
	// distinct, valid public keys.
	ErrInvalidKeySet = Register(10, "invalid_key_set", "invalid key set", Permanent)

	// ErrTemplateRender is returned when the authorization script template
	// is malformed or a placeholder cannot be resolved.
	ErrTemplateRender = Register(11, "template_render", "template render failed", Permanent)

	// ErrCompile is returned when the external compiler fails or produces
	// malformed bytecode.
	ErrCompile = Register(12, "compile", "compile failed", Transient)

	// ErrCacheMiss is returned when no bytecode is stored for a wallet address.
	ErrCacheMiss = Register(13, "cache_miss", "unknown wallet", Permanent)

	// ErrConnect is returned when the ledger node cannot be reached.
	ErrConnect = Register(14, "connect", "cannot connect to node", Transient)

	// ErrInvalidReceipt is returned when the node answers with anything other
	// than exactly one transfer receipt.
	ErrInvalidReceipt = Register(15, "invalid_receipt", "invalid receipt", Permanent)

	// ErrSubmit is returned when the node rejects or fails to process a
	// transaction.
	ErrSubmit = Register(16, "submit", "submit failed", Transient)

	// ErrInvalidRequest is returned for malformed request bodies and fields.
	ErrInvalidRequest = Register(17, "invalid_request", "invalid request", Permanent)

	// ErrOutcomeUnknown is returned when a spend may or may not have reached
	// the ledger. Replay with the same idempotency key only.
	ErrOutcomeUnknown = Register(18, "outcome_unknown", "spend outcome unknown", Transient)

	// ErrInFlight is returned when a spend with the same idempotency key is
	// still being processed.
	ErrInFlight = Register(19, "in_flight", "spend already in flight", Transient)

	// ErrImmutable is returned on an attempt to replace stored bytecode.
	ErrImmutable = Register(20, "immutable", "bytecode cannot be modified", Permanent)

	// ErrIdempotencyMismatch is returned when an idempotency key is reused
	// for a different spend.
	ErrIdempotencyMismatch = Register(22, "idempotency_mismatch", "idempotency key reused for a different spend", Permanent)

	// ErrInternal is the fallback for failures without a registered root.
	ErrInternal = Register(21, "internal", "internal error", Permanent)
)

// usedCodes keeps registered codes unique.
var usedCodes = map[uint32]*Error{}

// Register declares a root error. Codes must be unique; registering a code
// twice panics. Call only from package initialization.
func Register(code uint32, category, desc string, class Class) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %q", code, e.desc))
	}
	e := &Error{code: code, category: category, desc: desc, class: class}
	usedCodes[code] = e
	return e
}

// Error is a registered root error.
type Error struct {
	code     uint32
	category string
	desc     string
	class    Class
}

func (e *Error) Error() string { return e.desc }

// Code returns the stable numeric code.
func (e *Error) Code() uint32 { return e.code }

// Category returns the stable wire name.
func (e *Error) Category() string { return e.category }

// Class returns the retry class.
func (e *Error) Class() Class { return e.class }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool { return e.class == Transient }

// New returns an error with this root and the given description.
func (e *Error) New(description string) error {
	return errors.Wrap(e, description)
}

// Newf is New with formatting.
func (e *Error) Newf(format string, args ...interface{}) error {
	return errors.Wrapf(e, format, args...)
}

// Wrap annotates err with msg. A nil err yields nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// WithRoot attaches a root to a foreign error, keeping the foreign error's
// message. Both the root and cause stay reachable with Is.
func WithRoot(root *Error, cause error, msg string) error {
	if cause == nil {
		return root.New(msg)
	}
	return &rooted{root: root, cause: cause, msg: msg}
}

type rooted struct {
	root  *Error
	cause error
	msg   string
}

func (r *rooted) Error() string {
	if r.msg == "" {
		return fmt.Sprintf("%s: %v", r.root.desc, r.cause)
	}
	return fmt.Sprintf("%s: %s: %v", r.msg, r.root.desc, r.cause)
}

func (r *rooted) Unwrap() []error { return []error{r.root, r.cause} }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Root returns the registered root of err, or ErrInternal when there is none.
func Root(err error) *Error {
	var root *Error
	if stderrors.As(err, &root) {
		return root
	}
	return ErrInternal
}

package iocontext

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"syscall"
)

// Misc category values.
const (
	MiscAlreadyOpen  = 1
	MiscEOF          = 2
	MiscNotFound     = 3
	MiscFdSetFailure = 4
)

var (
	categoryOrdinal atomic.Uint64

	genericCategory = NewErrorCategory("generic", errnoMessage)
	systemCategory  = NewErrorCategory("system", errnoMessage)
	miscCategory    = NewErrorCategory("iocontext.misc", miscMessage)

	// OperationAborted is the code delivered to handlers of operations that
	// were canceled before they could complete.
	OperationAborted = NewErrorCode(int(syscall.ECANCELED), systemCategory)
)

// ErrorCategory identifies the domain of an [ErrorCode] value. Categories are
// compared by identity, and are ordered by registration.
type ErrorCategory struct {
	// prevents comparison by value
	_       [0]func()
	message func(value int) string
	name    string
	ordinal uint64
}

// NewErrorCategory registers a new category. The message function maps a
// value within the category to human-readable text, and may be nil.
func NewErrorCategory(name string, message func(value int) string) *ErrorCategory {
	return &ErrorCategory{
		name:    name,
		message: message,
		ordinal: categoryOrdinal.Add(1),
	}
}

// GenericCategory is the category of portable errno values. It is also the
// category of the zero [ErrorCode].
func GenericCategory() *ErrorCategory { return genericCategory }

// SystemCategory is the category of errors reported by the operating system.
func SystemCategory() *ErrorCategory { return systemCategory }

// MiscCategory is the category of miscellaneous reactor errors, see
// [MiscEOF] and friends.
func MiscCategory() *ErrorCategory { return miscCategory }

// Name returns the category's name.
func (c *ErrorCategory) Name() string { return c.name }

// Message returns the text for value within this category.
func (c *ErrorCategory) Message(value int) string {
	if c.message == nil {
		return c.name + " error " + strconv.Itoa(value)
	}
	return c.message(value)
}

func (c *ErrorCategory) String() string {
	return fmt.Sprintf("ErrorCategory(name=%q)", c.name)
}

func errnoMessage(value int) string {
	if value == 0 {
		return "Success"
	}
	return syscall.Errno(value).Error()
}

func miscMessage(value int) string {
	switch value {
	case 0:
		return "Success"
	case MiscAlreadyOpen:
		return "Already open"
	case MiscEOF:
		return "End of file"
	case MiscNotFound:
		return "Element not found"
	case MiscFdSetFailure:
		return "The descriptor does not fit into the select call's fd_set"
	default:
		return "iocontext.misc error"
	}
}

// ErrorCode is an integer value paired with the category it belongs to.
//
// The zero value is success in the [GenericCategory]. ErrorCode is a value
// type, safe to copy, and implements error (see also [ErrorCode.Err]).
type ErrorCode struct {
	category *ErrorCategory
	value    int
}

// NewErrorCode returns the code value within category. It panics if category
// is nil.
func NewErrorCode(value int, category *ErrorCategory) ErrorCode {
	if category == nil {
		panic(errors.New("iocontext: nil error category"))
	}
	return ErrorCode{value: value, category: category}
}

// ErrorCodeFromErrno returns errno as a code in the [SystemCategory].
func ErrorCodeFromErrno(errno syscall.Errno) ErrorCode {
	return ErrorCode{value: int(errno), category: systemCategory}
}

// Value returns the integer value.
func (ec ErrorCode) Value() int { return ec.value }

// Category returns the category, never nil.
func (ec ErrorCode) Category() *ErrorCategory {
	if ec.category == nil {
		return genericCategory
	}
	return ec.category
}

// Failed reports whether the code represents an error, i.e. value != 0.
func (ec ErrorCode) Failed() bool { return ec.value != 0 }

// Message returns the category-specific text for the value.
func (ec ErrorCode) Message() string { return ec.Category().Message(ec.value) }

// Assign replaces both the value and category. It panics if category is nil.
func (ec *ErrorCode) Assign(value int, category *ErrorCategory) {
	*ec = NewErrorCode(value, category)
}

// Clear resets the receiver to success in the default category.
func (ec *ErrorCode) Clear() { *ec = ErrorCode{} }

// Equal reports whether both codes have the same category and value.
func (ec ErrorCode) Equal(other ErrorCode) bool {
	return ec.Category() == other.Category() && ec.value == other.value
}

// Compare orders by category registration, then by value, returning -1, 0,
// or +1.
func (ec ErrorCode) Compare(other ErrorCode) int {
	a, b := ec.Category().ordinal, other.Category().ordinal
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case ec.value < other.value:
		return -1
	case ec.value > other.value:
		return 1
	default:
		return 0
	}
}

// Less reports whether ec orders before other.
func (ec ErrorCode) Less(other ErrorCode) bool { return ec.Compare(other) < 0 }

// Error implements the error interface.
func (ec ErrorCode) Error() string {
	return ec.Category().Name() + ": " + ec.Message()
}

// Err returns nil on success, otherwise the receiver as an error.
func (ec ErrorCode) Err() error {
	if !ec.Failed() {
		return nil
	}
	return ec
}

// Is supports [errors.Is], matching equal codes, and [syscall.Errno] values
// against codes in the system or generic categories.
func (ec ErrorCode) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return ec.Equal(t)
	case syscall.Errno:
		c := ec.Category()
		return (c == systemCategory || c == genericCategory) && ec.value == int(t)
	default:
		return false
	}
}

func (ec ErrorCode) String() string {
	return fmt.Sprintf("ErrorCode(value=%d, category=%s, message=%q)", ec.value, ec.Category(), ec.Message())
}

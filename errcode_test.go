package iocontext

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_zeroValue(t *testing.T) {
	var ec ErrorCode
	assert.False(t, ec.Failed())
	assert.Equal(t, 0, ec.Value())
	assert.Same(t, GenericCategory(), ec.Category())
	assert.Equal(t, "Success", ec.Message())
	assert.NoError(t, ec.Err())
	assert.True(t, ec.Equal(NewErrorCode(0, GenericCategory())))
}

// TestErrorCode_failed checks that failed tracks a non-zero value, across
// every built-in category.
func TestErrorCode_failed(t *testing.T) {
	for _, category := range []*ErrorCategory{GenericCategory(), SystemCategory(), MiscCategory()} {
		t.Run(category.Name(), func(t *testing.T) {
			assert.False(t, NewErrorCode(0, category).Failed())
			for _, v := range []int{1, 2, -1, 125, 1 << 20} {
				ec := NewErrorCode(v, category)
				assert.True(t, ec.Failed(), v)
				assert.Error(t, ec.Err())
			}
		})
	}
}

func TestErrorCode_nilCategoryPanics(t *testing.T) {
	assert.Panics(t, func() { NewErrorCode(1, nil) })
	var ec ErrorCode
	assert.Panics(t, func() { ec.Assign(1, nil) })
}

func TestErrorCode_assignAndClear(t *testing.T) {
	var ec ErrorCode
	ec.Assign(MiscEOF, MiscCategory())
	assert.Equal(t, MiscEOF, ec.Value())
	assert.Same(t, MiscCategory(), ec.Category())
	assert.Equal(t, "End of file", ec.Message())

	ec.Clear()
	assert.False(t, ec.Failed())
	assert.Same(t, GenericCategory(), ec.Category())
	assert.True(t, ec.Equal(ErrorCode{}))
}

// TestErrorCode_ordering checks equality is an equivalence relation, and that
// Less is a strict total order, ordering by category first.
func TestErrorCode_ordering(t *testing.T) {
	custom := NewErrorCategory("custom", nil)
	codes := []ErrorCode{
		{},
		NewErrorCode(1, GenericCategory()),
		NewErrorCode(0, SystemCategory()),
		NewErrorCode(int(syscall.ECANCELED), SystemCategory()),
		NewErrorCode(MiscNotFound, MiscCategory()),
		NewErrorCode(-3, custom),
		NewErrorCode(7, custom),
	}

	for i, a := range codes {
		assert.True(t, a.Equal(a))
		assert.False(t, a.Less(a))
		for j, b := range codes {
			assert.Equal(t, a.Equal(b), b.Equal(a))
			assert.Equal(t, i == j, a.Equal(b), "%v %v", a, b)
			assert.False(t, a.Less(b) && b.Less(a))
			assert.Equal(t, i < j, a.Less(b), "%v %v", a, b)
			assert.Equal(t, -a.Compare(b), b.Compare(a))
		}
	}

	// same value, different category
	assert.False(t, NewErrorCode(1, GenericCategory()).Equal(NewErrorCode(1, SystemCategory())))
}

func TestErrorCode_errorsIs(t *testing.T) {
	var err error = OperationAborted
	assert.True(t, errors.Is(err, syscall.ECANCELED))
	assert.True(t, errors.Is(err, OperationAborted))
	assert.False(t, errors.Is(err, syscall.ETIMEDOUT))
	assert.False(t, errors.Is(NewErrorCode(int(syscall.ECANCELED), MiscCategory()), syscall.ECANCELED))

	ec := ErrorCodeFromErrno(syscall.ENOENT)
	assert.Same(t, SystemCategory(), ec.Category())
	assert.True(t, errors.Is(ec, syscall.ENOENT))
	assert.Equal(t, syscall.ENOENT.Error(), ec.Message())
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t,
		`ErrorCode(value=2, category=ErrorCategory(name="iocontext.misc"), message="End of file")`,
		NewErrorCode(MiscEOF, MiscCategory()).String(),
	)
	assert.Equal(t, `ErrorCategory(name="system")`, SystemCategory().String())
	assert.Equal(t, "iocontext.misc: Element not found", NewErrorCode(MiscNotFound, MiscCategory()).Error())
}

func TestErrorCategory_Message(t *testing.T) {
	c := NewErrorCategory("app", func(value int) string {
		if value == 42 {
			return "the answer"
		}
		return "other"
	})
	require.Equal(t, "app", c.Name())
	assert.Equal(t, "the answer", NewErrorCode(42, c).Message())
	assert.Equal(t, "other", NewErrorCode(1, c).Message())

	anon := NewErrorCategory("anon", nil)
	assert.Equal(t, "anon error 5", anon.Message(5))

	assert.Equal(t, "Already open", MiscCategory().Message(MiscAlreadyOpen))
	assert.Equal(t, "iocontext.misc error", MiscCategory().Message(99))
	assert.NotEmpty(t, MiscCategory().Message(MiscFdSetFailure))
}

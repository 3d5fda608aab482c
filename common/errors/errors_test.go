package errors

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	baseError := errors.New("test error")
	err := &Error{
		Err:  baseError,
		Type: ErrorTypePrivate,
	}
	assert.Equal(t, err.Error(), baseError.Error())
	assert.True(t, errors.Is(err, baseError))

	assert.Equal(t, err.SetType(ErrorTypePublic), err)
	assert.Equal(t, ErrorTypePublic, err.Type)
	assert.True(t, err.IsType(ErrorTypePublic|ErrorTypeIO))
	assert.False(t, err.IsType(ErrorTypeFatal))

	assert.Equal(t, err.SetMeta("some data"), err)
	assert.Equal(t, "some data", err.Meta)
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrAddressInUse, syscall.EADDRINUSE, ErrorTypeFatal, "127.0.0.1:80")
	assert.True(t, errors.Is(err, ErrAddressInUse))
	assert.True(t, errors.Is(err, syscall.EADDRINUSE))
	assert.Equal(t, ErrAddressInUse.Error()+": "+syscall.EADDRINUSE.Error(), err.Error())
	assert.True(t, IsFatal(err))
	assert.False(t, IsTransient(err))

	// 原因与哨兵相同时不重复包装
	err = Wrap(ErrTimeout, ErrTimeout, ErrorTypeIO, nil)
	assert.Equal(t, ErrTimeout, err.Err)

	err = Wrap(ErrTimeout, nil, ErrorTypeTransient, nil)
	assert.Equal(t, ErrTimeout, err.Err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestErrorChain(t *testing.T) {
	errs := ErrorChain{
		{Err: errors.New("first"), Type: ErrorTypePrivate},
		{Err: errors.New("second"), Type: ErrorTypePrivate, Meta: "some data"},
		{Err: errors.New("third"), Type: ErrorTypePublic, Meta: map[string]any{"status": "400"}},
	}
	assert.Equal(t, errs, errs.ByType(ErrorTypeAny))
	assert.Equal(t, "third", errs.Last().Error())
	assert.Equal(t, []string{"first", "second", "third"}, errs.Errors())
	assert.Equal(t, []string{"third"}, errs.ByType(ErrorTypePublic).Errors())
	assert.Equal(t, []string{"first", "second"}, errs.ByType(ErrorTypePrivate).Errors())
	assert.Equal(t, "", errs.ByType(ErrorTypeIO).String())
	assert.Equal(t, `Error #01: first
Error #02: second
     Meta: some data
Error #03: third
     Meta: map[status:400]
`, errs.String())

	joined := errs.Join()
	assert.True(t, errors.Is(joined, errs[1]))

	assert.Nil(t, ErrorChain{}.Join())
	assert.Equal(t, error(errs[0]), errs[:1].Join())
	assert.True(t, ErrorChain{}.Last() == nil)
}

func TestErrorFormat(t *testing.T) {
	err := Newf(ErrorTypeAny, nil, "caused by %s", "reason")
	assert.Equal(t, New(errors.New("caused by reason"), ErrorTypeAny, nil), err)
	publicErr := NewPublicf("caused by %s", "reason")
	assert.Equal(t, New(errors.New("caused by reason"), ErrorTypePublic, nil), publicErr)
	privateErr := NewPrivatef("caused by %s", "reason")
	assert.Equal(t, New(errors.New("caused by reason"), ErrorTypePrivate, nil), privateErr)
}

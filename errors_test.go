package fetch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("send", ErrCodeInvalidParameters, "path is empty")

	if err.Op != "send" {
		t.Errorf("Expected Op=send, got %s", err.Op)
	}
	if err.Code != ErrCodeInvalidParameters {
		t.Errorf("Expected Code=ErrCodeInvalidParameters, got %s", err.Code)
	}

	expected := "fetch: path is empty (op=send)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestChannelError(t *testing.T) {
	err := NewChannelError("send", 3, ErrCodeQueueFull, "sent queue is full")

	if err.Channel != 3 {
		t.Errorf("Expected Channel=3, got %d", err.Channel)
	}

	expected := "fetch: sent queue is full (op=send channel=3)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestHandleErrorMessage(t *testing.T) {
	err := NewHandleError("bind_buffer", Handle(0x20001), ErrCodeNotFound, "unknown handle")

	if err.Handle != Handle(0x20001) {
		t.Errorf("Expected Handle=0x20001, got %#x", uint32(err.Handle))
	}

	expected := "fetch: unknown handle (op=bind_buffer handle=0x20001)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestEmptyMessageFallsBackToCode(t *testing.T) {
	err := NewError("dowork", ErrCodeEngineClosed, "")
	expected := "fetch: engine is shut down (op=dowork)"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := NewError("send", ErrCodePoolExhausted, "no free slots")
	b := NewChannelError("send", 1, ErrCodePoolExhausted, "different message")
	c := NewError("send", ErrCodeQueueFull, "")

	if !errors.Is(a, b) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different codes should not match")
	}
}

func TestWrapErrorErrnoMapping(t *testing.T) {
	cases := []struct {
		errno syscall.Errno
		code  ErrorCode
	}{
		{syscall.ENOENT, ErrCodeNotFound},
		{syscall.EINVAL, ErrCodeInvalidParameters},
		{syscall.ENOMEM, ErrCodePoolExhausted},
		{syscall.EIO, ErrCodeIOError},
	}

	for _, tc := range cases {
		err := WrapError("open", tc.errno)
		if err.Code != tc.code {
			t.Errorf("errno %d: expected code %q, got %q", int(tc.errno), tc.code, err.Code)
		}
		if err.Errno != tc.errno {
			t.Errorf("errno %d not preserved", int(tc.errno))
		}
		if !IsErrno(err, tc.errno) {
			t.Errorf("IsErrno should match %d", int(tc.errno))
		}
	}
}

func TestWrapErrorWrappedErrno(t *testing.T) {
	inner := fmt.Errorf("fsprov: open /missing: %w", syscall.ENOENT)
	err := WrapError("open", inner)

	if err.Code != ErrCodeNotFound {
		t.Errorf("Expected ErrCodeNotFound through wrapping, got %q", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("wrapped error should unwrap to the inner error")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("open", nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapErrorKeepsStructured(t *testing.T) {
	orig := NewChannelError("send", 2, ErrCodeQueueFull, "sent queue is full")
	wrapped := WrapError("dowork", orig)

	if wrapped.Op != "dowork" {
		t.Errorf("Expected outer op, got %s", wrapped.Op)
	}
	if wrapped.Channel != 2 || wrapped.Code != ErrCodeQueueFull {
		t.Error("structured context should carry over")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("send", ErrCodePoolExhausted, ""))
	if !IsCode(err, ErrCodePoolExhausted) {
		t.Error("IsCode should see through wrapping")
	}
	if IsCode(err, ErrCodeQueueFull) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), ErrCodePoolExhausted) {
		t.Error("IsCode should not match plain errors")
	}
}

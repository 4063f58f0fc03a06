package must

import (
	"errors"
	"testing"
)

type fakeCloser struct {
	err error
}

func (f fakeCloser) Close() error {
	return f.err
}

func TestCloseSwallowsError(t *testing.T) {
	// Close must not panic even when the underlying close fails; the
	// error is only logged, never returned.
	Close(fakeCloser{err: errors.New("boom")}, nil)
}

func TestCloseSucceeds(t *testing.T) {
	Close(fakeCloser{err: nil}, nil)
}

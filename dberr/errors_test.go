package dberr

import (
	"fmt"
	"io"
	"testing"
)

func TestIsFatal(t *testing.T) {

	cases := []struct {
		err   error
		fatal bool
	}{
		{fmt.Errorf("%w: page 3 has tag 7", ErrCorrupted), true},
		{fmt.Errorf("child 9 of 4: %w", ErrMisuse), true},
		{fmt.Errorf("%w: write page 1: %w", ErrIO, io.ErrShortWrite), false},
		{ErrRowLimit, false},
		{nil, false},
	}

	for _, c := range cases {
		if IsFatal(c.err) != c.fatal {
			t.Errorf("IsFatal(%v): expected %v but got %v", c.err, c.fatal, !c.fatal)
		}
	}
}

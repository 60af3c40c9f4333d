package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	errTestKind    String = "test kind"
	errTestWrapped String = "wrapped %s: %w"
	errTestOther   String = "other kind"
)

func TestErrorString(t *testing.T) {
	tests := map[string]struct {
		err      error
		want     string
		is, isnt []error
	}{
		"bare": {
			err:  errTestKind,
			want: "test kind",
			is:   []error{errTestKind},
			isnt: []error{errTestOther},
		},
		"formatted": {
			err:  errTestWrapped.F("read", io.EOF),
			want: "wrapped read: EOF",
			is:   []error{errTestWrapped, io.EOF},
			isnt: []error{errTestKind},
		},
		"key value": {
			err:  errTestKind.KV("frame", "42[]"),
			want: "test kind\t{\"frame\":\"42[]\"}",
			is:   []error{errTestKind},
		},
		"formatted with key value": {
			err:  errTestWrapped.F("write", io.ErrClosedPipe).KV("n", 3),
			want: "wrapped write: io: read/write on closed pipe\t{\"n\":\"3\"}",
			is:   []error{errTestWrapped, io.ErrClosedPipe},
		},
		"nested kinds": {
			err:  errTestWrapped.F("outer", errTestKind.F()),
			want: "wrapped outer: test kind",
			is:   []error{errTestWrapped, errTestKind},
			isnt: []error{errTestOther},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, test.err.Error())
			for _, target := range test.is {
				assert.True(t, errors.Is(test.err, target), "is %v", target)
			}
			for _, target := range test.isnt {
				assert.False(t, errors.Is(test.err, target), "is not %v", target)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	var se Struct
	err := error(errTestWrapped.F("x", io.EOF))

	assert.True(t, errors.As(err, &se))
	assert.Equal(t, errTestWrapped, se.Kind())
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// String is a constant error kind. The text may carry fmt verbs which are
	// filled in through F, so a kind can be declared once and wrapped many times.
	String string

	// Struct is a String that has been given formatted values or key/value context.
	Struct struct {
		e    String
		rr   error
		wrap []error
		kv   []interface{}
	}
)

func (e String) Error() string { return string(e) }

// F formats the kind with v. A %w verb keeps the wrapped error reachable by errors.Is and errors.As.
func (e String) F(v ...interface{}) Struct {
	err := fmt.Errorf(string(e), v...)

	var errs []error
	for _, val := range v {
		if werr, ok := val.(error); ok {
			errs = append(errs, werr)
		}
	}

	return Struct{e: e, rr: err, wrap: errs}
}

// KV adds key/value context which is printed after the message.
func (e String) KV(kv ...interface{}) Struct {
	return Struct{e: e, rr: e, kv: kv}
}

func (e Struct) Error() string { return e.rr.Error() + fmtKV(e.kv) }

func (e Struct) KV(kv ...interface{}) Struct {
	return Struct{e: e.e, rr: e.rr, wrap: e.wrap, kv: append(e.kv[:len(e.kv):len(e.kv)], kv...)}
}

// Kind returns the constant the error was built from.
func (e Struct) Kind() String { return e.e }

func (e Struct) Is(target error) bool {
	switch t := target.(type) {
	case String:
		return e.e == t
	case Struct:
		return e.e == t.e
	}
	return false
}

func (e Struct) Unwrap() []error { return e.wrap }

func fmtKV(kvPairs []interface{}) string {
	if len(kvPairs) == 0 {
		return ""
	}

	pairs := make([]string, 0, (len(kvPairs)+1)/2)
	for n := 0; n < len(kvPairs); n += 2 {
		key, val := kvPairs[n], interface{}("")
		if n+1 < len(kvPairs) {
			val = kvPairs[n+1]
		}
		pairs = append(pairs, fmt.Sprint(key, `":"`, val))
	}

	return fmt.Sprintf("\t"+`{"%s"}`, strings.Join(pairs, `","`))
}

// Is reports whether any error in err's tree matches target. It is here so callers
// that import this package under its own name still reach the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

// As mirrors errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

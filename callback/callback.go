// Package callback turns ordinary Go functions into event handlers, decoding
// the event arguments into the function parameters.
package callback

import (
	"bytes"
	"errors"
	"io"
	"reflect"
)

// Args are the arguments of a received event or acknowledgement.
type Args interface {
	Count() int
	GetValue(i int, v interface{}) error
}

type Callback interface {
	Callback(Args) error
}

// ErrorWrap ignores the arguments.
type ErrorWrap func() error

func (fn ErrorWrap) Callback(Args) error { return fn() }

// FuncAny receives every argument decoded as encoding/json would into an
// interface{}, with binary values as []byte.
type FuncAny func(...interface{}) error

func (fn FuncAny) Callback(args Args) error {
	v := make([]interface{}, args.Count())
	for i := range v {
		if err := args.GetValue(i, &v[i]); err != nil {
			return ErrParam.F(i, err)
		}
	}
	return fn(v...)
}

// FuncString receives the first argument, "unknown" when there is none and
// "undefined" when it is not a string.
type FuncString func(string)

func (fn FuncString) Callback(args Args) error {
	if args.Count() == 0 {
		fn("unknown")
		return nil
	}

	var str string
	if err := args.GetValue(0, &str); err != nil {
		fn("undefined")
		return nil
	}
	fn(str)
	return nil
}

// Wrap calls Func, a func with one parameter per argument and either no
// result or a single error result. Parameters may be of any type
// encoding/json can fill; []byte and io.Reader parameters take binary
// values.
type Wrap struct {
	Func interface{}
}

var (
	typeError  = reflect.TypeOf((*error)(nil)).Elem()
	typeReader = reflect.TypeOf((*io.Reader)(nil)).Elem()
)

func (fn Wrap) Callback(args Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case string:
				err = errors.New(e)
			case error:
				err = e
			default:
				err = ErrUnknownPanic
			}
		}
	}()

	f := reflect.ValueOf(fn.Func)
	if f.Kind() != reflect.Func {
		return ErrNotAFunc.F(fn.Func)
	}

	ft := f.Type()
	if ft.IsVariadic() || ft.NumIn() != args.Count() {
		return ErrUnexpectedDataInParams.F(ft.NumIn(), args.Count())
	}
	if ft.NumOut() > 1 || (ft.NumOut() == 1 && ft.Out(0) != typeError) {
		return ErrUnexpectedSingleOutParam.F(ft.NumOut())
	}

	in := make([]reflect.Value, ft.NumIn())
	for i := range in {
		if in[i], err = param(args, i, ft.In(i)); err != nil {
			return ErrParam.F(i, err)
		}
	}

	out := f.Call(in)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func param(args Args, i int, t reflect.Type) (reflect.Value, error) {
	if t == typeReader {
		var b []byte
		if err := args.GetValue(i, &b); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(bytes.NewReader(b)).Convert(typeReader), nil
	}

	v := reflect.New(t)
	if err := args.GetValue(i, v.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return v.Elem(), nil
}

package registry

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Call invokes the function registered under name with args.
//
// If the function's first parameter is a context.Context it receives ctx.
// Variadic functions are supported. A trailing error result is returned as
// the call error; the first non-error result, if any, is returned as the
// value. When name is not registered Call returns an error wrapping
// ErrNoSuchFunction.
func (r *Registry) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := r.Func(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNoSuchFunction, name)
	}

	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("shared function '%s' is not callable (%T)", name, fn)
	}
	fnType := fnVal.Type()

	in, err := buildArgs(ctx, fnType, args)
	if err != nil {
		return nil, fmt.Errorf("calling shared function '%s': %w", name, err)
	}

	return splitResults(fnVal.Call(in))
}

func buildArgs(ctx context.Context, fnType reflect.Type, args []any) ([]reflect.Value, error) {
	var in []reflect.Value
	offset := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}

	fixed := fnType.NumIn() - offset
	if fnType.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("expected at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("expected %d arguments, got %d", fixed, len(args))
	}

	for i, arg := range args {
		var paramType reflect.Type
		if i < fixed {
			paramType = fnType.In(offset + i)
		} else {
			paramType = fnType.In(fnType.NumIn() - 1).Elem()
		}

		if arg == nil {
			switch paramType.Kind() {
			case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				in = append(in, reflect.Zero(paramType))
				continue
			default:
				return nil, fmt.Errorf("argument %d: nil is not a valid %s", i, paramType)
			}
		}

		argVal := reflect.ValueOf(arg)
		switch {
		case argVal.Type().AssignableTo(paramType):
			in = append(in, argVal)
		case argVal.Type().ConvertibleTo(paramType) && argVal.Kind() == paramType.Kind():
			in = append(in, argVal.Convert(paramType))
		default:
			return nil, fmt.Errorf("argument %d: cannot use %s as %s", i, argVal.Type(), paramType)
		}
	}
	return in, nil
}

func splitResults(out []reflect.Value) (any, error) {
	var (
		value any
		err   error
	)
	for i, res := range out {
		if i == len(out)-1 && res.Type() == errorType {
			if !res.IsNil() {
				err = res.Interface().(error)
			}
			continue
		}
		if i == 0 {
			value = res.Interface()
		}
	}
	return value, err
}

package clone

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"

	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// Sentinel errors for the individual strategies.
var (
	// ErrUncloneable indicates the structural clone met a value it cannot
	// reproduce: a func, a channel, an unsafe pointer, or a struct with
	// unexported fields.
	ErrUncloneable = errors.New("value cannot be structurally cloned")

	// ErrCyclic indicates the serialization fallback met a reference cycle.
	ErrCyclic = errors.New("value contains a reference cycle")
)

// CopyError is returned when both the structural clone and the
// serialization fallback failed. It matches ErrCopyFailure.
type CopyError struct {
	// Primary is the structural clone failure.
	Primary error
	// Fallback is the serialization round-trip failure.
	Fallback error
}

func (e *CopyError) Error() string {
	return "deep copy failed: structural clone: " + e.Primary.Error() +
		"; serialization fallback: " + e.Fallback.Error()
}

// Is reports whether target is ErrCopyFailure.
func (e *CopyError) Is(target error) bool {
	return target == cberrors.ErrCopyFailure
}

// Unwrap exposes both underlying failures to errors.Is and errors.As.
func (e *CopyError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

type options struct {
	logger *slog.Logger
}

// Option configures Copy.
type Option func(*options)

// WithLogger sets the logger that reports fallback use.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Copy returns a deep copy of v that shares no mutable references with it.
//
// The structural clone is tried first. When it fails, v is round-tripped
// through JSON instead; that path drops funcs and channels found inside
// maps and slices of interface values and fails on reference cycles. When
// both fail the returned error is a *CopyError and nothing usable is
// returned.
func Copy[T any](v T, opts ...Option) (T, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	out, primaryErr := Structural(v)
	if primaryErr == nil {
		return out, nil
	}

	o.logger.Warn("structural clone failed, falling back to serialization",
		"error", primaryErr.Error())

	out, fallbackErr := ViaJSON(v)
	if fallbackErr == nil {
		return out, nil
	}

	var zero T
	return zero, &CopyError{Primary: primaryErr, Fallback: fallbackErr}
}

// Structural deep-copies v with reflection. Shared and cyclic references in
// v are reproduced as shared and cyclic references in the copy.
func Structural[T any](v T) (T, error) {
	src := reflect.ValueOf(&v).Elem()

	c := &cloner{seen: make(map[refKey]reflect.Value)}
	dst, err := c.clone(src)
	if err != nil {
		var zero T
		return zero, err
	}

	out := reflect.New(src.Type()).Elem()
	out.Set(dst)
	return *(out.Addr().Interface().(*T)), nil
}

// refKey identifies a reference-typed value already copied. Slices include
// length and capacity so distinct windows over one array stay distinct.
type refKey struct {
	typ reflect.Type
	ptr uintptr
	len int
	cap int
}

type cloner struct {
	seen map[refKey]reflect.Value
}

var timeType = reflect.TypeOf(time.Time{})

func (c *cloner) clone(v reflect.Value) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Invalid:
		return v, nil

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return v, nil

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		inner, err := c.clone(v.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out, nil

	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer()}
		if done, ok := c.seen[key]; ok {
			return done, nil
		}
		out := reflect.New(v.Type().Elem())
		c.seen[key] = out
		inner, err := c.clone(v.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Elem().Set(inner)
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer()}
		if done, ok := c.seen[key]; ok {
			return done, nil
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = out
		iter := v.MapRange()
		for iter.Next() {
			k, err := c.clone(iter.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			val, err := c.clone(iter.Value())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(k, val)
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		key := refKey{typ: v.Type(), ptr: v.Pointer(), len: v.Len(), cap: v.Cap()}
		if done, ok := c.seen[key]; ok {
			return done, nil
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = out
		for i := range v.Len() {
			elem, err := c.clone(v.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			elem, err := c.clone(v.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Struct:
		// time.Time is immutable and safe to share by value.
		if v.Type() == timeType {
			return v, nil
		}
		t := v.Type()
		out := reflect.New(t).Elem()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				return reflect.Value{}, errors.Wrapf(ErrUncloneable, "%s has unexported field %s", t, f.Name)
			}
			fv, err := c.clone(v.Field(i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(fv)
		}
		return out, nil

	default:
		// Func, Chan, UnsafePointer
		return reflect.Value{}, errors.Wrapf(ErrUncloneable, "%s", v.Type())
	}
}

// ViaJSON deep-copies v by serializing it to JSON and decoding the result
// into a fresh T. Numbers decoded into interface values become json.Number.
func ViaJSON[T any](v T) (T, error) {
	var zero T

	s := &sanitizer{onPath: make(map[refKey]bool)}
	tree, err := s.sanitize(reflect.ValueOf(&v).Elem())
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return zero, errors.Wrap(err, "serializing snapshot")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, errors.Wrap(err, "deserializing snapshot")
	}
	return out, nil
}

// sanitizer turns a value into something encoding/json accepts with the
// semantics of a textual serializer: funcs and channels inside objects are
// dropped, inside arrays they become null, and cycles are an error.
type sanitizer struct {
	onPath map[refKey]bool
}

func (s *sanitizer) enter(v reflect.Value) (refKey, error) {
	key := refKey{typ: v.Type(), ptr: v.Pointer()}
	if v.Kind() == reflect.Slice {
		key.len, key.cap = v.Len(), v.Cap()
	}
	if s.onPath[key] {
		return key, errors.Wrapf(ErrCyclic, "via %s", v.Type())
	}
	s.onPath[key] = true
	return key, nil
}

func droppable(v reflect.Value) bool {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

func (s *sanitizer) sanitize(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Invalid:
		return nil, nil

	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return s.sanitize(v.Elem())

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		key, err := s.enter(v)
		if err != nil {
			return nil, err
		}
		defer delete(s.onPath, key)
		return s.sanitize(v.Elem())

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface(), nil
		}
		key, err := s.enter(v)
		if err != nil {
			return nil, err
		}
		defer delete(s.onPath, key)

		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if droppable(iter.Value()) {
				continue
			}
			val, err := s.sanitize(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = val
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		// []byte and json.RawMessage keep their own encodings.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface(), nil
		}
		key, err := s.enter(v)
		if err != nil {
			return nil, err
		}
		defer delete(s.onPath, key)
		return s.sanitizeElems(v)

	case reflect.Array:
		return s.sanitizeElems(v)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, errors.Wrapf(ErrUncloneable, "top-level %s cannot be serialized", v.Type())

	default:
		// Scalars and structs: encoding/json decides.
		return v.Interface(), nil
	}
}

func (s *sanitizer) sanitizeElems(v reflect.Value) (any, error) {
	out := make([]any, v.Len())
	for i := range v.Len() {
		if droppable(v.Index(i)) {
			continue
		}
		elem, err := s.sanitize(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

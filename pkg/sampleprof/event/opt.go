package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Opt holds a value that may be absent.
// The zero value is absent. Opt is a plain value type so records that carry
// many optional fields keep a fixed shape and never allocate for them.
type Opt[T any] struct {
	v  T
	ok bool
}

// Some returns a present Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{v: v, ok: true}
}

// None returns an absent Opt.
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// OptOf builds an Opt from the (value, ok) pair returned by lookups.
func OptOf[T any](v T, ok bool) Opt[T] {
	if !ok {
		return Opt[T]{}
	}
	return Opt[T]{v: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsSet reports whether a value is present.
func (o Opt[T]) IsSet() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Opt[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.v
}

// String renders the value, or "None" when absent.
func (o Opt[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprint(o.v)
}

// MarshalJSON implements json.Marshaler. Absent values encode as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

// UnmarshalJSON implements json.Unmarshaler. null decodes as absent.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Opt[T]{v: v, ok: true}
	return nil
}

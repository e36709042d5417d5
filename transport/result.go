package transport

import "encoding/json"

// Result is the uniform response envelope {isSuccess, value, error}. A
// success carries a value and a failure carries a message, never both. The
// discriminant is the isSuccess field, not the HTTP status.
type Result[T any] struct {
	ok      bool
	value   T
	message string
}

// Success builds a successful result.
func Success[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

// Failure builds a failed result carrying msg.
func Failure[T any](msg string) Result[T] {
	return Result[T]{message: msg}
}

// Ok reports whether the result is a success.
func (r Result[T]) Ok() bool { return r.ok }

// Value returns the carried value and whether the result is a success.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Message returns the failure message; empty for a success.
func (r Result[T]) Message() string { return r.message }

type wireResult[T any] struct {
	IsSuccess bool    `json:"isSuccess"`
	Value     *T      `json:"value"`
	Error     *string `json:"error"`
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	w := wireResult[T]{IsSuccess: r.ok}
	if r.ok {
		v := r.value
		w.Value = &v
	} else {
		m := r.message
		w.Error = &m
	}
	return json.Marshal(w)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var w wireResult[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result[T]{ok: w.IsSuccess}
	if w.IsSuccess {
		if w.Value != nil {
			r.value = *w.Value
		}
		return nil
	}
	if w.Error != nil {
		r.message = *w.Error
	}
	return nil
}

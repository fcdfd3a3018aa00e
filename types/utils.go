package types

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Zero returns the zero value for type T.
func Zero[T any]() T {
	var zero T
	return zero
}

// MarshalJSON is a small json.Marshal wrapper that adds context to marshaling errors.
func MarshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "can't marshal %#v", v)
	}

	return b, nil
}

// UnmarshalJSON is a small json.Unmarshal wrapper that adds context to unmarshaling errors.
func UnmarshalJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "can't unmarshal JSON %q into %T", data, v)
	}

	return nil
}

// CantParseInt64 wraps a parse error encountered while parsing text as an int64.
func CantParseInt64(err error, text string) error {
	return errors.Wrapf(err, "can't parse %q as int64", text)
}

// CantParseUint64 wraps a parse error encountered while parsing text as a uint64.
func CantParseUint64(err error, text string) error {
	return errors.Wrapf(err, "can't parse %q as uint64", text)
}

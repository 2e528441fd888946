package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is the tagged union the spec allows for JSON-RPC request
// identifiers: either a 64-bit integer or a string. Unlike plain
// interface{}, it refuses to round-trip null, floats, objects, and arrays.
type RequestID struct {
	str    string
	num    int64
	isStr  bool
	isNull bool
}

// NewIntID builds an integer-valued request id.
func NewIntID(n int64) RequestID {
	return RequestID{num: n}
}

// NewStringID builds a string-valued request id.
func NewStringID(s string) RequestID {
	return RequestID{str: s, isStr: true}
}

// IsNull reports whether the id is null. Neither the constructors nor
// UnmarshalJSON produce a null id, so it returns false for every id they
// build; the zero value RequestID{} is the integer 0, not null.
func (id RequestID) IsNull() bool {
	return id.isNull
}

// Canonical returns the base-10 textual projection used for uniqueness and
// request/response pairing: the integer 1 and the string "1" collide.
func (id RequestID) Canonical() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

func (id RequestID) String() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON emits an integer or a string, matching the constructor used.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isNull {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON accepts only JSON strings and JSON integers. null, floats
// with a fractional part, objects, and arrays are all rejected.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return fmt.Errorf("protocol: request id must not be null")
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = RequestID{str: asString, isStr: true}
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		n, err := asNumber.Int64()
		if err != nil {
			return fmt.Errorf("protocol: request id must be an integer, got %q", asNumber.String())
		}
		*id = RequestID{num: n}
		return nil
	}

	return fmt.Errorf("protocol: request id must be a string or integer")
}

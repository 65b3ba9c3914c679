package data

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Float is a fractional JSON number. It prints the shortest form that reads
// back to the same value, so 16.9 stays 16.9 and 2.0 stays 2.0.
type Float float64

func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// convertNumbers replaces every json.Number in v with an int64 for integer
// literals or a Float for everything else. Maps and slices are updated in place.
func convertNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		return number(t)
	case map[string]interface{}:
		for k, e := range t {
			t[k] = convertNumbers(e)
		}
	case []interface{}:
		for i, e := range t {
			t[i] = convertNumbers(e)
		}
	}
	return v
}

func number(n json.Number) interface{} {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of float64 range; the decoder has already validated the literal
		return s
	}
	return Float(f)
}

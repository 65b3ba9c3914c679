// Package data loads the JSON document that feeds the menu template.
package data

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// ResultKey is the top-level field handed to the template.
const ResultKey = "result"

// ErrNoResult is returned when the document has no result field.
var ErrNoResult = errors.New("document has no \"" + ResultKey + "\" field")

// Numbers are decoded as json.Number and then converted by convertNumbers, so
// templates can compare and add them.
var decoder = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Document is a decoded input file.
type Document map[string]interface{}

// Load reads and decodes a JSON object from path.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a JSON object. Any other top-level value is an error.
func Parse(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("data file is empty")
	}

	var v interface{}
	if err := decoder.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode data file: %w", err)
	}

	obj, ok := convertNumbers(v).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("data file must contain a JSON object, got %T", v)
	}
	return Document(obj), nil
}

// Result returns the value stored under ResultKey.
func (d Document) Result() (interface{}, error) {
	v, ok := d[ResultKey]
	if !ok {
		return nil, ErrNoResult
	}
	return v, nil
}

// String renders the document for debug logging.
func (d Document) String() string {
	b, err := decoder.Marshal(map[string]interface{}(d))
	if err != nil {
		return fmt.Sprintf("<unprintable document: %v>", err)
	}
	return string(b)
}

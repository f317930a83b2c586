package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling remote
// payloads that return numbers or booleans where a string is documented.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return strconv.FormatInt(int64(numVal), 10)
		}
		return strconv.FormatFloat(numVal, 'g', -1, 64)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// FlexibleIntValue parses an identifier that may arrive as a JSON number or a
// numeric string. Null and empty values yield 0.
func FlexibleIntValue(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var numVal json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&numVal); err == nil {
		n, err := strconv.Atoi(numVal.String())
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", raw)
		}
		return n, nil
	}

	s := strings.TrimSpace(FlexibleStringValue(raw))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	return n, nil
}

// FlexInt is an int that unmarshals from either a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	n, err := FlexibleIntValue(data)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// FlexString is a string that unmarshals from any JSON scalar.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString(FlexibleStringValue(data))
	return nil
}

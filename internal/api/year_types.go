package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// FlexYear is a year field that can unmarshal from either:
// - a number: 2015
// - a string: "2015", "2015 (est.)", ""
// - null
//
// The raw text is kept; the service layer coerces it to a year or nothing.
type FlexYear string

// UnmarshalJSON handles flexible year parsing from JSON.
func (y *FlexYear) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*y = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*y = FlexYear(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*y = FlexYear(strconv.FormatInt(i, 10))
			return nil
		}
		if f, err := n.Float64(); err == nil {
			*y = FlexYear(strconv.Itoa(int(f)))
			return nil
		}
	}

	return fmt.Errorf("cannot unmarshal %s into FlexYear", string(data))
}

// Schema documents the field as any JSON value so request validation lets
// both forms through.
func (FlexYear) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Year as a number or text; anything without a leading integer is stored as no year",
		Examples:    []any{2015, "2015"},
	}
}

// String returns the raw text.
func (y FlexYear) String() string {
	return string(y)
}

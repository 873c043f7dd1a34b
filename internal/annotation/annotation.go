// Package annotation renders named values into their canonical string form.
package annotation

import (
	"fmt"
	"math"
	"strconv"
)

// NotAvailable is the value of an annotation that could not be computed.
const NotAvailable = "NA"

// Annotation is a name/value pair; the value is always a canonical string.
type Annotation struct {
	Name  string
	Value string
}

// Build creates an annotation with a canonically formatted value.
func Build(name string, value any) Annotation {
	return Annotation{Name: name, Value: Format(value)}
}

// Format renders a value the way every annotation value is emitted:
// booleans as 1/0, floats rounded to five decimals and printed with five
// significant digits, nil as NotAvailable and anything else with fmt.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return NotAvailable
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case *string:
		if v == nil {
			return NotAvailable
		}
		return *v
	case *bool:
		if v == nil {
			return NotAvailable
		}
		return Format(*v)
	case *float64:
		if v == nil {
			return NotAvailable
		}
		return formatFloat(*v)
	case *int:
		if v == nil {
			return NotAvailable
		}
		return strconv.Itoa(*v)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NotAvailable
	}
	return strconv.FormatFloat(roundTo(f, 5), 'g', 5, 64)
}

// roundTo rounds the exact binary value of f to the given decimals, so ties
// are only those the float actually sits on.
func roundTo(f float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', decimals, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// Lookup returns the value of the first annotation with the given name.
func Lookup(anns []Annotation, name string) (string, bool) {
	for _, a := range anns {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

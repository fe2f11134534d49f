package httpinvoker

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatArg renders an argument value for a URL path segment or query parameter.
// Numbers never use exponent notation, so a JSON-decoded 1234567 stays "1234567".
// Maps and slices are JSON encoded.
func FormatArg(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

package samples

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/rdmp"
)

// ValidateFieldValue checks one value against a field declaration. It
// returns a structured result so batch callers can collect every problem;
// the caller decides whether a failure rejects or skips the value. The only
// coercion applied is numeric parsing for number fields.
func ValidateFieldValue(field rdmp.Field, value any) (bool, string) {
	switch field.Type {
	case rdmp.FieldTypeNumber:
		if !parsesAsNumber(value) {
			return false, "Value must be a number"
		}
	case rdmp.FieldTypeCategorical:
		text, ok := value.(string)
		if !ok || !contains(field.AllowedValues, text) {
			return false, fmt.Sprintf("Value must be one of: %s", strings.Join(field.AllowedValues, ", "))
		}
	case rdmp.FieldTypeDate:
		// Format content is not enforced at this layer.
		if _, ok := value.(string); !ok {
			return false, "Date must be a string"
		}
	}
	return true, ""
}

func parsesAsNumber(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	default:
		return false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

package samples

import "github.com/metafirst/supervisor/internal/rdmp"

// CheckCompleteness compares a sample's field values against the current
// RDMP. Missing keys come back in RDMP declaration order; total filled
// counts distinct keys regardless of whether they are required.
func CheckCompleteness(values []FieldValue, body rdmp.Body) Completeness {
	filled := make(map[string]struct{}, len(values))
	for _, fv := range values {
		filled[fv.FieldKey] = struct{}{}
	}

	missing := []string{}
	totalRequired := 0
	for _, field := range body.Fields {
		if !field.Required {
			continue
		}
		totalRequired++
		if _, ok := filled[field.Key]; !ok {
			missing = append(missing, field.Key)
		}
	}

	return Completeness{
		IsComplete:    len(missing) == 0,
		MissingFields: missing,
		TotalRequired: totalRequired,
		TotalFilled:   len(filled),
	}
}

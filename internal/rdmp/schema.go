package rdmp

import "fmt"

// ValidateSchema checks a raw document body against the structural rules and
// returns every problem found, in a stable order. It never panics on
// malformed input: wrong-shaped values are reported as errors instead.
func ValidateSchema(body map[string]any) (bool, []string) {
	var errs []string

	rolesRaw, hasRoles := body["roles"]
	if !hasRoles {
		errs = append(errs, "Missing 'roles' key")
	}
	fieldsRaw, hasFields := body["fields"]
	if !hasFields {
		errs = append(errs, "Missing 'fields' key")
	}

	if hasRoles {
		errs = append(errs, validateRoles(rolesRaw)...)
	}
	if hasFields {
		errs = append(errs, validateFields(fieldsRaw)...)
	}

	return len(errs) == 0, errs
}

func validateRoles(raw any) []string {
	var errs []string
	roles, ok := raw.([]any)
	if !ok || len(roles) == 0 {
		return append(errs, "'roles' must be a non-empty list")
	}

	seen := make(map[string]struct{}, len(roles))
	for i, entry := range roles {
		role, ok := entry.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Role %d must be an object", i))
			continue
		}

		name, hasName := stringValue(role, "name")
		if !hasName {
			errs = append(errs, fmt.Sprintf("Role %d missing 'name'", i))
		} else {
			if _, dup := seen[name]; dup {
				errs = append(errs, fmt.Sprintf("Duplicate role name: %s", name))
			}
			seen[name] = struct{}{}
		}

		label := name
		if !hasName {
			label = fmt.Sprintf("%d", i)
		}

		permsRaw, hasPerms := role["permissions"]
		if !hasPerms {
			errs = append(errs, fmt.Sprintf("Role %d missing 'permissions'", i))
			continue
		}
		perms, ok := permsRaw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Role '%s' has invalid 'permissions'", label))
			continue
		}
		for _, key := range PermissionKeys {
			if _, ok := perms[key]; !ok {
				errs = append(errs, fmt.Sprintf("Role '%s' missing permission '%s'", label, key))
			}
		}
	}
	return errs
}

func validateFields(raw any) []string {
	var errs []string
	fields, ok := raw.([]any)
	if !ok || len(fields) == 0 {
		return append(errs, "'fields' must be a non-empty list")
	}

	seen := make(map[string]struct{}, len(fields))
	for i, entry := range fields {
		field, ok := entry.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Field %d must be an object", i))
			continue
		}

		key, hasKey := stringValue(field, "key")
		if !hasKey {
			errs = append(errs, fmt.Sprintf("Field %d missing 'key'", i))
		} else {
			if _, dup := seen[key]; dup {
				errs = append(errs, fmt.Sprintf("Duplicate field key: %s", key))
			}
			seen[key] = struct{}{}
		}

		label := key
		if !hasKey {
			label = fmt.Sprintf("%d", i)
		}

		if _, ok := stringValue(field, "label"); !ok {
			errs = append(errs, fmt.Sprintf("Field %d missing 'label'", i))
		}

		fieldType, hasType := stringValue(field, "type")
		switch {
		case !hasType:
			errs = append(errs, fmt.Sprintf("Field %d missing 'type'", i))
		case !validFieldType(fieldType):
			errs = append(errs, fmt.Sprintf("Field '%s' has invalid type: %s", label, fieldType))
		}

		if visibility, ok := stringValue(field, "visibility"); ok && !validVisibility(visibility) {
			errs = append(errs, fmt.Sprintf("Field '%s' has invalid visibility: %s", label, visibility))
		}

		if fieldType == FieldTypeCategorical {
			values, ok := field["allowed_values"].([]any)
			if !ok || len(values) == 0 {
				errs = append(errs, fmt.Sprintf("Categorical field '%s' missing 'allowed_values'", label))
			}
		}
	}
	return errs
}

func stringValue(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func validFieldType(t string) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeCategorical:
		return true
	}
	return false
}

func validVisibility(v string) bool {
	switch v {
	case VisibilityPrivate, VisibilityCollaborators, VisibilityPublicIndex:
		return true
	}
	return false
}

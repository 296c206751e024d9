package rdmp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recognized permission keys. Every role in a document must declare all four.
const (
	PermEditMetadata  = "can_edit_metadata"
	PermEditPaths     = "can_edit_paths"
	PermCreateRelease = "can_create_release"
	PermManageRDMP    = "can_manage_rdmp"
)

// PermissionKeys lists the recognized permission keys in declaration order.
var PermissionKeys = []string{PermEditMetadata, PermEditPaths, PermCreateRelease, PermManageRDMP}

// Field types accepted by the schema.
const (
	FieldTypeString      = "string"
	FieldTypeNumber      = "number"
	FieldTypeDate        = "date"
	FieldTypeCategorical = "categorical"
)

// Field visibility levels.
const (
	VisibilityPrivate       = "private"
	VisibilityCollaborators = "collaborators"
	VisibilityPublicIndex   = "public_index"
)

// Document status values for project scoped versions. Informational only:
// the current document for a scope is always the one with the highest
// version number, regardless of status.
const (
	StatusDraft      = "DRAFT"
	StatusActive     = "ACTIVE"
	StatusSuperseded = "SUPERSEDED"
)

// Document is one committed version of an RDMP. Rows are append-only and
// never mutated after insert.
type Document struct {
	ID         int64
	Scope      string
	VersionInt int
	Body       map[string]any
	Provenance map[string]any
	Status     string
	Title      string
	CreatedAt  time.Time
	CreatedBy  int64
	UpdatedAt  time.Time
	ApprovedBy *int64
}

// Template groups reusable RDMP definitions. Versions live in the document
// store under the template scope.
type Template struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Role is a named permission bundle declared inside a document body.
type Role struct {
	Name        string
	Permissions map[string]bool
}

// Field describes one metadata field samples may carry.
type Field struct {
	Key           string
	Label         string
	Type          string
	Required      bool
	AllowedValues []string
	Visibility    string
}

// IngestionRules drive the desktop ingest helper.
type IngestionRules struct {
	FilePatterns []string `json:"file_patterns"`
	Prompts      []string `json:"prompts"`
}

// Body is the typed view of a document body. Only construct one from a body
// that already passed ValidateSchema; DecodeBody does no validation itself.
type Body struct {
	Roles          []Role
	Fields         []Field
	IngestionRules IngestionRules
}

// TemplateScope returns the versioning namespace for a template.
func TemplateScope(templateID int64) string {
	return fmt.Sprintf("template:%d", templateID)
}

// ProjectScope returns the versioning namespace for a project.
func ProjectScope(projectID int64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// ProjectIDFromScope extracts the project id from a project scope. Returns
// zero for template scopes.
func ProjectIDFromScope(scope string) int64 {
	raw, ok := strings.CutPrefix(scope, "project:")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

type bodyJSON struct {
	Roles []struct {
		Name        string          `json:"name"`
		Permissions map[string]bool `json:"permissions"`
	} `json:"roles"`
	Fields []struct {
		Key           string   `json:"key"`
		Label         string   `json:"label"`
		Type          string   `json:"type"`
		Required      bool     `json:"required"`
		AllowedValues []string `json:"allowed_values"`
		Visibility    string   `json:"visibility"`
	} `json:"fields"`
	IngestionRules IngestionRules `json:"ingestion_rules"`
}

// DecodeBody converts a raw document body into its typed form. Fields with
// no visibility default to collaborators.
func DecodeBody(raw map[string]any) (Body, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Body{}, fmt.Errorf("rdmp: encode body: %w", err)
	}
	var parsed bodyJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Body{}, fmt.Errorf("rdmp: decode body: %w", err)
	}
	body := Body{IngestionRules: parsed.IngestionRules}
	for _, r := range parsed.Roles {
		body.Roles = append(body.Roles, Role{Name: r.Name, Permissions: r.Permissions})
	}
	for _, f := range parsed.Fields {
		visibility := f.Visibility
		if visibility == "" {
			visibility = VisibilityCollaborators
		}
		body.Fields = append(body.Fields, Field{
			Key:           f.Key,
			Label:         f.Label,
			Type:          f.Type,
			Required:      f.Required,
			AllowedValues: f.AllowedValues,
			Visibility:    visibility,
		})
	}
	return body, nil
}

// FindRole returns the role with the given name, if declared.
func (b Body) FindRole(name string) (Role, bool) {
	for _, r := range b.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// FindField returns the field with the given key, if declared.
func (b Body) FindField(key string) (Field, bool) {
	for _, f := range b.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFieldKeys returns the keys of required fields in declaration order.
func (b Body) RequiredFieldKeys() []string {
	var keys []string
	for _, f := range b.Fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// PublicFieldKeys returns the keys of public_index fields in declaration order.
func (b Body) PublicFieldKeys() []string {
	var keys []string
	for _, f := range b.Fields {
		if f.Visibility == VisibilityPublicIndex {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

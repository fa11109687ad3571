package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/strata-api/strata/internal/apierr"
)

// Shared validator instance for attribute constraint tags.
var validate = validator.New()

// Load validates a decoded request document against the schema and maps it
// to a flat storage-shaped object. Structural mismatches (missing or
// malformed data node, wrong wire type) yield IncorrectType errors;
// field-level failures are collected into a batched ValidationError list
// rather than failing fast.
func (s *Instance) Load(raw map[string]any) (Object, error) {
	data, err := s.dataNode(raw)
	if err != nil {
		return nil, err
	}

	var errs apierr.List
	result := Object{}

	if idRaw, ok := data["id"]; ok {
		result[s.def.IDField] = toString(idRaw)
	}

	attrs, err := childObject(data, "attributes")
	if err != nil {
		return nil, err
	}
	for i := range s.def.Attributes {
		a := &s.def.Attributes[i]
		v, present := attrs[a.Name]
		if !present {
			if a.Required && !a.ReadOnly && !s.opts.Partial {
				errs = append(errs, apierr.Validation(
					"/data/attributes/"+a.Name, "Missing data for required field."))
			}
			continue
		}
		if a.ReadOnly {
			continue
		}
		if a.Validate != "" {
			if verr := validate.Var(v, a.Validate); verr != nil {
				errs = append(errs, apierr.Validation(
					"/data/attributes/"+a.Name, constraintDetail(a, verr)))
				continue
			}
		}
		result[a.StorageName] = v
	}

	rels, err := childObject(data, "relationships")
	if err != nil {
		return nil, err
	}
	for i := range s.def.Relationships {
		rel := &s.def.Relationships[i]
		node, present := rels[rel.Name]
		if !present {
			continue
		}
		linkage, lerrs := loadLinkage(rel, node)
		if len(lerrs) > 0 {
			errs = append(errs, lerrs...)
			continue
		}
		result[rel.StorageField] = linkage
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return result, nil
}

// dataNode extracts and structurally checks the top-level "data" node.
func (s *Instance) dataNode(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return nil, apierr.List{apierr.IncorrectType("/data", `Missing "data" node`)}
	}
	node, ok := raw["data"]
	if !ok {
		return nil, apierr.List{apierr.IncorrectType("/data", `Missing "data" node`)}
	}
	data, ok := node.(map[string]any)
	if !ok {
		return nil, apierr.List{apierr.IncorrectType("/data", `The "data" node must be an object`)}
	}
	typ, _ := data["type"].(string)
	if typ != s.def.Type {
		return nil, apierr.List{apierr.IncorrectType("/data/type",
			fmt.Sprintf("Invalid type. Expected %q.", s.def.Type))}
	}
	return data, nil
}

func childObject(data map[string]any, key string) (map[string]any, error) {
	node, ok := data[key]
	if !ok || node == nil {
		return nil, nil
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, apierr.List{apierr.IncorrectType("/data/"+key,
			fmt.Sprintf("The %q node must be an object", key))}
	}
	return obj, nil
}

// loadLinkage validates one relationship node and maps it to linkage
// objects keyed by the relationship's storage field.
func loadLinkage(rel *Relationship, node any) (any, apierr.List) {
	pointer := "/data/relationships/" + rel.Name

	wrapper, ok := node.(map[string]any)
	if !ok {
		return nil, apierr.List{apierr.Validation(pointer, "Relationship node must be an object")}
	}
	inner, ok := wrapper["data"]
	if !ok {
		return nil, apierr.List{apierr.Validation(pointer, `Missing "data" node in relationship`)}
	}

	switch v := inner.(type) {
	case nil:
		if rel.Many {
			return nil, apierr.List{apierr.Validation(pointer, "A to-many relationship cannot be null")}
		}
		return nil, nil
	case map[string]any:
		if rel.Many {
			return nil, apierr.List{apierr.Validation(pointer, "A to-many relationship must hold a list")}
		}
		return linkageObject(rel, v, pointer)
	case []any:
		if !rel.Many {
			return nil, apierr.List{apierr.Validation(pointer, "A to-one relationship cannot hold a list")}
		}
		out := make([]Object, 0, len(v))
		var errs apierr.List
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				errs = append(errs, apierr.Validation(pointer, "Relationship members must be objects"))
				continue
			}
			linkage, lerrs := linkageObject(rel, m, pointer)
			if len(lerrs) > 0 {
				errs = append(errs, lerrs...)
				continue
			}
			out = append(out, linkage.(Object))
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return out, nil
	default:
		return nil, apierr.List{apierr.Validation(pointer, "Relationship data must be an object or a list")}
	}
}

func linkageObject(rel *Relationship, m map[string]any, pointer string) (any, apierr.List) {
	typ, hasType := m["type"]
	id, hasID := m["id"]
	var errs apierr.List
	if !hasType {
		errs = append(errs, apierr.Validation(pointer+"/type", `Missing type in "data" node`))
	}
	if !hasID {
		errs = append(errs, apierr.Validation(pointer+"/id", `Missing id in "data" node`))
	}
	if hasType && toString(typ) != rel.Type {
		errs = append(errs, apierr.IncorrectType(pointer+"/type",
			fmt.Sprintf("Invalid type. Expected %q.", rel.Type)))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return Object{"type": toString(typ), "id": toString(id)}, nil
}

func constraintDetail(a *Attribute, err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return fmt.Sprintf("Field %q does not satisfy the %q constraint.", a.Name, verrs[0].Tag())
	}
	return fmt.Sprintf("Not a valid value for field %q.", a.Name)
}

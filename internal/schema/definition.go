package schema

import (
	"fmt"
	"sync"
)

// Attribute declares one serializable field of a resource.
type Attribute struct {
	// Name is the wire (document) field name.
	Name string
	// StorageName is the storage field name; defaults to Name.
	StorageName string
	// Required marks the attribute mandatory on non-partial loads.
	Required bool
	// ReadOnly attributes are dumped but never loaded from payloads.
	ReadOnly bool
	// Validate is a go-playground/validator tag applied on load.
	Validate string
}

// Relationship declares one relationship field of a resource.
type Relationship struct {
	// Name is the wire field name of the relationship.
	Name string
	// Type is the related resource's wire type name.
	Type string
	// IDField is the related object's identifier field; defaults to "id".
	IDField string
	// StorageField is the storage-layer association name; defaults to Name.
	StorageField string
	// RelatedURL is a template for the related-resource link, with
	// <field> placeholders resolved against the owning object.
	RelatedURL string
	// Many marks a to-many relationship.
	Many bool
}

// Definition is the static schema of one resource type. Definitions are
// registered once at startup and are read-only afterwards.
type Definition struct {
	// Type is the wire type name, e.g. "articles".
	Type string
	// IDField is the identifier field; defaults to "id".
	IDField string
	// SelfURL is the item self-link template, e.g. "/articles/<id>".
	SelfURL string
	// Attributes in declaration order.
	Attributes []Attribute
	// Relationships in declaration order.
	Relationships []Relationship

	reg *Registry
}

func (d *Definition) normalize() {
	if d.IDField == "" {
		d.IDField = "id"
	}
	for i := range d.Attributes {
		if d.Attributes[i].StorageName == "" {
			d.Attributes[i].StorageName = d.Attributes[i].Name
		}
	}
	for i := range d.Relationships {
		if d.Relationships[i].StorageField == "" {
			d.Relationships[i].StorageField = d.Relationships[i].Name
		}
		if d.Relationships[i].IDField == "" {
			d.Relationships[i].IDField = "id"
		}
	}
}

// Attribute looks up a declared attribute by wire name.
func (d *Definition) Attribute(name string) (*Attribute, bool) {
	for i := range d.Attributes {
		if d.Attributes[i].Name == name {
			return &d.Attributes[i], true
		}
	}
	return nil, false
}

// HasAttribute reports whether the schema declares the named attribute.
// The dispatch core uses this to detect soft-delete capable resources.
func (d *Definition) HasAttribute(name string) bool {
	_, ok := d.Attribute(name)
	return ok
}

// Relationship looks up a declared relationship by wire name.
func (d *Definition) Relationship(name string) (*Relationship, bool) {
	for i := range d.Relationships {
		if d.Relationships[i].Name == name {
			return &d.Relationships[i], true
		}
	}
	return nil, false
}

// Registry maps wire type names to their definitions so include expansion
// can serialize related resources. It is written during startup
// registration and read-only afterwards.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register normalizes and registers a definition. Registering the same
// type twice is a configuration error.
func (r *Registry) Register(def *Definition) error {
	if def.Type == "" {
		return fmt.Errorf("schema definition has no type name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.Type]; dup {
		return fmt.Errorf("schema type %q already registered", def.Type)
	}
	def.normalize()
	def.reg = r
	r.defs[def.Type] = def
	return nil
}

// MustRegister registers a definition and panics on configuration errors.
// Registration happens at startup where a misconfigured resource should
// stop the process.
func (r *Registry) MustRegister(def *Definition) *Definition {
	if err := r.Register(def); err != nil {
		// ALLOW-PANIC: startup-time configuration error
		panic(err)
	}
	return def
}

// Lookup returns the definition registered for a wire type.
func (r *Registry) Lookup(typeName string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typeName]
	return def, ok
}

package repository

import "fmt"

// Shape is the kind of relationship an association describes.
type Shape int

const (
	ShapeBelongsTo Shape = iota + 1
	ShapeHasOne
	ShapeHasMany
	ShapeHasManyThrough
)

func (s Shape) String() string {
	switch s {
	case ShapeBelongsTo:
		return "belongs_to"
	case ShapeHasOne:
		return "has_one"
	case ShapeHasMany:
		return "has_many"
	case ShapeHasManyThrough:
		return "has_many_through"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Cascade is the action applied to dependents when their owner is destroyed.
type Cascade int

const (
	// CascadeDefault resolves to CascadeNullify, or CascadeIgnore for through associations
	CascadeDefault Cascade = iota
	CascadeNullify
	CascadeDestroy
	CascadeIgnore
)

func (c Cascade) String() string {
	switch c {
	case CascadeNullify:
		return "nullify"
	case CascadeDestroy:
		return "destroy"
	case CascadeIgnore:
		return "ignore"
	default:
		return "default"
	}
}

// Association describes one relationship declared on a type.
type Association struct {
	Name  string
	Shape Shape
	Owner string
	// Target is the type on the other end. For through associations it is the
	// target of the Source association on the intermediate type.
	Target string
	// ForeignKey lives on the owner for belongs_to and on the target otherwise.
	// Through associations have none.
	ForeignKey string
	Through    string
	Source     string
	Cascade    Cascade
	// Inverse is the belongs_to on Target that points back at Owner.
	// Empty when the target declares none.
	Inverse string

	inverseExplicit bool
	targetExplicit  bool
}

// AssociationOption customizes an association declaration.
type AssociationOption func(*Association)

// Target overrides the target type derived from the association name.
func Target(typ string) AssociationOption {
	return func(a *Association) {
		a.Target = typ
		a.targetExplicit = true
	}
}

// ForeignKey overrides the default foreign key attribute.
func ForeignKey(attr string) AssociationOption {
	return func(a *Association) { a.ForeignKey = attr }
}

// Dependent sets the cascade policy.
func Dependent(c Cascade) AssociationOption {
	return func(a *Association) { a.Cascade = c }
}

// Inverse names the belongs_to on the target that is back-linked to the owner.
func Inverse(name string) AssociationOption {
	return func(a *Association) {
		a.Inverse = name
		a.inverseExplicit = true
	}
}

// Source names the association on the intermediate type that reaches the far side.
func Source(name string) AssociationOption {
	return func(a *Association) { a.Source = name }
}

// BelongsTo declares that the type holds the id of a Target in "<name>_id".
func BelongsTo(name string, opts ...AssociationOption) ModelOption {
	return declare(name, ShapeBelongsTo, "", opts)
}

// HasOne declares a single dependent holding the owner's id.
func HasOne(name string, opts ...AssociationOption) ModelOption {
	return declare(name, ShapeHasOne, "", opts)
}

// HasMany declares a collection of dependents holding the owner's id.
func HasMany(name string, opts ...AssociationOption) ModelOption {
	return declare(name, ShapeHasMany, "", opts)
}

// HasManyThrough declares a collection reached through the has_many named through.
// The through association must be declared before this one.
func HasManyThrough(name, through string, opts ...AssociationOption) ModelOption {
	return declare(name, ShapeHasManyThrough, through, opts)
}

func declare(name string, shape Shape, through string, opts []AssociationOption) ModelOption {
	return func(m *Model) error {
		if name == "" {
			return invalidf("%s: association name is empty", m.Name)
		}
		if _, exists := m.byName[name]; exists {
			return invalidf("%s: association %q declared twice", m.Name, name)
		}

		a := &Association{
			Name:    name,
			Shape:   shape,
			Owner:   m.Name,
			Target:  targetFor(name),
			Through: through,
		}
		for _, opt := range opts {
			opt(a)
		}

		switch shape {
		case ShapeBelongsTo:
			if a.ForeignKey == "" {
				a.ForeignKey = name + "_id"
			}
		case ShapeHasOne, ShapeHasMany:
			if a.ForeignKey == "" {
				a.ForeignKey = snakeCase(m.Name) + "_id"
			}
			if a.Inverse == "" {
				a.Inverse = snakeCase(m.Name)
			}
		case ShapeHasManyThrough:
			via, ok := m.byName[through]
			if !ok || via.Shape != ShapeHasMany {
				return invalidf("%s: through association %q of %q must be a previously declared has_many", m.Name, through, name)
			}
			if a.Source == "" {
				a.Source = singular(name)
			}
			a.ForeignKey = ""
		}

		if a.Cascade == CascadeDefault {
			a.Cascade = CascadeNullify
			if shape == ShapeHasManyThrough {
				a.Cascade = CascadeIgnore
			}
		}

		m.associations = append(m.associations, a)
		m.byName[name] = a
		return nil
	}
}

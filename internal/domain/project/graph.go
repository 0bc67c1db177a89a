// internal/domain/project/graph.go
package project

import (
	"iter"
	"slices"
)

// Class classifies an association by its endpoint kinds.
type Class uint8

const (
	ClassRaster Class = iota + 1 // image -> group
	ClassMember                  // member -> group
)

func (c Class) String() string {
	switch c {
	case ClassRaster:
		return "raster"
	case ClassMember:
		return "member"
	default:
		return "unknown"
	}
}

// MarshalText renders the class name.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses a class name.
func (c *Class) UnmarshalText(b []byte) error {
	parsed, ok := ParseClass(string(b))
	if !ok {
		return ErrIllegalEndpointPair
	}
	*c = parsed
	return nil
}

// ParseClass accepts "raster" and "member".
func ParseClass(s string) (Class, bool) {
	switch s {
	case "raster":
		return ClassRaster, true
	case "member":
		return ClassMember, true
	}
	return 0, false
}

// Classify returns the class for an endpoint pair, or false if the pair is illegal.
func Classify(from, to Kind) (Class, bool) {
	if to != KindGroup {
		return 0, false
	}
	switch from {
	case KindImage:
		return ClassRaster, true
	case KindMember:
		return ClassMember, true
	}
	return 0, false
}

// Key identifies an association. The reverse pair is a different key.
type Key struct {
	From EntityID
	To   EntityID
}

// Association is a directed, typed edge. It is never mutated once stored.
type Association struct {
	From  EntityID `json:"from"`
	To    EntityID `json:"to"`
	Class Class    `json:"class"`
}

// Key returns the association's key.
func (a Association) Key() Key { return Key{From: a.From, To: a.To} }

// Graph maps keys to associations and remembers insertion order.
//
// Graph enforces only the rules that can be checked from the keys alone;
// entity existence is checked by Session before calling Connect.
type Graph struct {
	byKey map[Key]Association
	order []Key
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byKey: make(map[Key]Association)}
}

// Len returns the number of associations.
func (g *Graph) Len() int { return len(g.order) }

// Lookup returns the association stored under k.
func (g *Graph) Lookup(k Key) (Association, bool) {
	a, ok := g.byKey[k]
	return a, ok
}

// Connect inserts from->to. Checks run in this order: duplicate key, endpoint
// pair legality, then the one-image-per-group rule. A rejected call leaves the
// graph unchanged.
func (g *Graph) Connect(from, to EntityID) (Association, error) {
	k := Key{From: from, To: to}
	if _, dup := g.byKey[k]; dup {
		return Association{}, graphErr(ErrDuplicateAssociation, k)
	}
	class, ok := Classify(from.Kind, to.Kind)
	if !ok {
		return Association{}, graphErr(ErrIllegalEndpointPair, k)
	}
	if class == ClassRaster && g.hasIncoming(to, ClassRaster) {
		return Association{}, graphErr(ErrGroupAlreadyHasImage, k)
	}

	a := Association{From: from, To: to, Class: class}
	g.byKey[k] = a
	g.order = append(g.order, k)
	return a, nil
}

// Disconnect removes k. It reports whether anything was removed.
func (g *Graph) Disconnect(k Key) bool {
	if _, ok := g.byKey[k]; !ok {
		return false
	}
	delete(g.byKey, k)
	if i := slices.Index(g.order, k); i >= 0 {
		g.order = slices.Delete(g.order, i, i+1)
	}
	return true
}

// Clear drops every association.
func (g *Graph) Clear() {
	clear(g.byKey)
	g.order = g.order[:0]
}

// All yields every association in insertion order. The sequence reads the
// graph when iterated, so it can be ranged over repeatedly.
func (g *Graph) All() iter.Seq[Association] {
	return func(yield func(Association) bool) {
		for _, k := range g.order {
			if !yield(g.byKey[k]) {
				return
			}
		}
	}
}

// RelationsOfType yields the associations of one class in insertion order.
func (g *Graph) RelationsOfType(c Class) iter.Seq[Association] {
	return func(yield func(Association) bool) {
		for a := range g.All() {
			if a.Class != c {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Incoming yields associations of class c ending at to.
func (g *Graph) Incoming(to EntityID, c Class) iter.Seq[Association] {
	return func(yield func(Association) bool) {
		for a := range g.RelationsOfType(c) {
			if a.To != to {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Outgoing yields associations starting at from.
func (g *Graph) Outgoing(from EntityID) iter.Seq[Association] {
	return func(yield func(Association) bool) {
		for a := range g.All() {
			if a.From != from {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

func (g *Graph) hasIncoming(to EntityID, c Class) bool {
	for range g.Incoming(to, c) {
		return true
	}
	return false
}

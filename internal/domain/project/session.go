// internal/domain/project/session.go
package project

import (
	"errors"
	"slices"
	"strings"
)

// Session is the explicitly owned editing context: scalar project attributes,
// the entity registry, and the relation graph. Every mutation goes through it
// so the cross-component invariant holds: no association references an entity
// that does not exist.
//
// Session is not safe for concurrent use; callers serialize access.
type Session struct {
	projectName string
	ciafLevel   int
	mode        Mode

	reg   Registry
	graph *Graph
}

// NewSession returns an empty session with the mode unset.
func NewSession() *Session {
	return &Session{graph: NewGraph()}
}

func (s *Session) ProjectName() string { return s.projectName }
func (s *Session) CIAFLevel() int      { return s.ciafLevel }
func (s *Session) Mode() Mode          { return s.mode }

// Registry exposes the entity collections for reading.
func (s *Session) Registry() *Registry { return &s.reg }

// SetProjectName stores the trimmed name. Format is checked by the validator.
func (s *Session) SetProjectName(name string) {
	s.projectName = strings.TrimSpace(name)
}

// SetCIAFLevel stores the classification level; 0 means not selected.
func (s *Session) SetCIAFLevel(level int) {
	s.ciafLevel = level
}

// SetCount resizes one collection and clears the graph.
func (s *Session) SetCount(k Kind, n int) error {
	if n < 0 {
		return ErrNegativeCount
	}
	if k != KindImage && k != KindGroup && k != KindMember {
		return ErrWrongKind
	}
	s.reg.resize(k, n, s.mode)
	s.graph.Clear()
	return nil
}

// SetMode switches the role vocabulary. Every member is reset to the new
// default role without a container flag, and the graph is cleared. Setting
// the current mode again is a no-op.
func (s *Session) SetMode(m Mode) {
	if m == s.mode {
		return
	}
	s.mode = m
	s.reg.resetRoles(m)
	s.graph.Clear()
}

// SetGroupName sets a group's display name.
func (s *Session) SetGroupName(id EntityID, name string) error {
	if err := s.require(id, KindGroup); err != nil {
		return err
	}
	s.reg.groups[id.Index].Name = strings.TrimSpace(name)
	return nil
}

// SetMemberUserName sets the local part of a member's email.
func (s *Session) SetMemberUserName(id EntityID, name string) error {
	if err := s.require(id, KindMember); err != nil {
		return err
	}
	s.reg.members[id.Index].UserName = strings.TrimSpace(name)
	return nil
}

// SetMemberRole changes a member's role. The role must belong to the current
// mode's set. Moving to a non-supervising role drops the container flag.
func (s *Session) SetMemberRole(id EntityID, role Role) error {
	if err := s.require(id, KindMember); err != nil {
		return err
	}
	if !s.mode.Allows(role) {
		return entityErr(ErrIllegalRole, id, string(role))
	}
	m := &s.reg.members[id.Index]
	m.Role = role
	if !role.Supervises() {
		m.Container = false
	}
	return nil
}

// SetContainer sets or clears the container flag. Setting it on one member
// clears it everywhere else; only Tutor/Líder members may hold it.
func (s *Session) SetContainer(id EntityID, on bool) error {
	if err := s.require(id, KindMember); err != nil {
		return err
	}
	m := &s.reg.members[id.Index]
	if !on {
		m.Container = false
		return nil
	}
	if !m.Role.Supervises() {
		return entityErr(ErrContainerRole, id, string(m.Role))
	}
	s.reg.clearContainer()
	m.Container = true
	return nil
}

// BindImageFile attaches f to an image, replacing any previous file.
// A file with a bad name is rejected and the previous binding is kept.
func (s *Session) BindImageFile(id EntityID, f ImageFile) error {
	if err := s.require(id, KindImage); err != nil {
		return err
	}
	if err := CheckImageFileName(f.Name); err != nil {
		var ee *EntityError
		if errors.As(err, &ee) {
			ee.ID = id
		}
		return err
	}
	bound := f
	s.reg.images[id.Index].File = &bound
	return nil
}

// UnbindImageFile removes the file from an image.
func (s *Session) UnbindImageFile(id EntityID) error {
	if err := s.require(id, KindImage); err != nil {
		return err
	}
	s.reg.images[id.Index].File = nil
	return nil
}

// Connect adds the association from->to after checking both endpoints exist.
func (s *Session) Connect(from, to EntityID) (Association, error) {
	k := Key{From: from, To: to}
	if !s.reg.Has(from) || !s.reg.Has(to) {
		return Association{}, graphErr(ErrUnknownEntity, k)
	}
	return s.graph.Connect(from, to)
}

// Disconnect removes an association. Removing a missing key is not an error;
// the return value reports whether something was removed.
func (s *Session) Disconnect(k Key) bool {
	return s.graph.Disconnect(k)
}

// Lookup returns the association stored under k.
func (s *Session) Lookup(k Key) (Association, bool) {
	return s.graph.Lookup(k)
}

// Relations returns the associations of class c in insertion order.
func (s *Session) Relations(c Class) []Association {
	return slices.Collect(s.graph.RelationsOfType(c))
}

// RelationCount returns the number of stored associations.
func (s *Session) RelationCount() int { return s.graph.Len() }

// Snapshot copies the session into plain values. The validator and the
// payload builder work on snapshots only.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ProjectName:  s.projectName,
		Mode:         s.mode,
		CIAFLevel:    s.ciafLevel,
		Images:       s.reg.Images(),
		Groups:       s.reg.Groups(),
		Members:      s.reg.Members(),
		Associations: slices.Collect(s.graph.All()),
	}
}

func (s *Session) require(id EntityID, k Kind) error {
	if id.Kind != k {
		return entityErr(ErrWrongKind, id, "")
	}
	if !s.reg.Has(id) {
		return entityErr(ErrUnknownEntity, id, "")
	}
	return nil
}

// internal/domain/project/mode.go
package project

import "strings"

// Mode selects the member role vocabulary for a whole session.
type Mode uint8

const (
	// ModeUnset means the user has not answered the student-tutor question yet.
	// Members still get the non-student vocabulary, but validation reports it.
	ModeUnset Mode = iota
	ModeStudentTutor
	ModeStandard
)

// Role is a member role. Values are the exact strings the backend stores.
type Role string

const (
	RoleEstudiante    Role = "Estudiante"
	RoleTutor         Role = "Tutor"
	RoleContribuyente Role = "Contribuyente"
	RoleLider         Role = "Líder"
)

var (
	studentTutorRoles = []Role{RoleEstudiante, RoleTutor}
	standardRoles     = []Role{RoleContribuyente, RoleLider}
)

// ParseMode maps the wire flag ("si" / "no") to a Mode. Anything else is ModeUnset.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí":
		return ModeStudentTutor
	case "no":
		return ModeStandard
	default:
		return ModeUnset
	}
}

// Wire returns "si", "no" or "" for ModeUnset.
func (m Mode) Wire() string {
	switch m {
	case ModeStudentTutor:
		return "si"
	case ModeStandard:
		return "no"
	default:
		return ""
	}
}

func (m Mode) String() string {
	if w := m.Wire(); w != "" {
		return w
	}
	return "unset"
}

// MarshalText renders the wire flag.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.Wire()), nil }

// UnmarshalText parses the wire flag; unknown values become ModeUnset.
func (m *Mode) UnmarshalText(b []byte) error {
	*m = ParseMode(string(b))
	return nil
}

// Roles returns the legal role set, first entry being the default.
func (m Mode) Roles() []Role {
	if m == ModeStudentTutor {
		return append([]Role(nil), studentTutorRoles...)
	}
	return append([]Role(nil), standardRoles...)
}

// DefaultRole is the role a new or reset member starts with.
func (m Mode) DefaultRole() Role {
	return m.Roles()[0]
}

// Allows reports whether r belongs to the mode's role set.
func (m Mode) Allows(r Role) bool {
	for _, legal := range m.Roles() {
		if legal == r {
			return true
		}
	}
	return false
}

// Supervises reports whether r is a supervising role (Tutor or Líder).
// Supervisors may hold the container flag and need not belong to a group.
func (r Role) Supervises() bool {
	return r == RoleTutor || r == RoleLider
}

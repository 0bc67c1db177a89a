// internal/domain/project/snapshot.go
package project

// Snapshot is a value copy of a session. It is what gets validated, turned
// into a payload, and returned by the API.
type Snapshot struct {
	ProjectName  string        `json:"projectName"`
	Mode         Mode          `json:"studentTutor"`
	CIAFLevel    int           `json:"ciafLevel"`
	Images       []Image       `json:"images"`
	Groups       []Group       `json:"groups"`
	Members      []Member      `json:"members"`
	Associations []Association `json:"associations"`
}

// Image returns the image with the given id.
func (s Snapshot) Image(id EntityID) (Image, bool) {
	if id.Kind != KindImage || id.Index < 0 || id.Index >= len(s.Images) {
		return Image{}, false
	}
	return s.Images[id.Index], true
}

// Group returns the group with the given id.
func (s Snapshot) Group(id EntityID) (Group, bool) {
	if id.Kind != KindGroup || id.Index < 0 || id.Index >= len(s.Groups) {
		return Group{}, false
	}
	return s.Groups[id.Index], true
}

// Member returns the member with the given id.
func (s Snapshot) Member(id EntityID) (Member, bool) {
	if id.Kind != KindMember || id.Index < 0 || id.Index >= len(s.Members) {
		return Member{}, false
	}
	return s.Members[id.Index], true
}

// OfClass returns the associations of class c in insertion order.
func (s Snapshot) OfClass(c Class) []Association {
	var out []Association
	for _, a := range s.Associations {
		if a.Class == c {
			out = append(out, a)
		}
	}
	return out
}

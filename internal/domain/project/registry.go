// internal/domain/project/registry.go
package project

import (
	"io"
	"regexp"
	"strings"
)

// namePattern is the shape shared by project names, group names, member
// user names and image base names: lowercase ASCII letters and digits only.
var namePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// IsWellFormedName reports whether s matches [a-z0-9]+.
func IsWellFormedName(s string) bool {
	return namePattern.MatchString(s)
}

// FileSource yields the bytes of a bound file. Content is only read at upload time.
type FileSource interface {
	Open() (io.ReadCloser, error)
}

// ImageFile describes the file bound to an image.
type ImageFile struct {
	Name   string     `json:"name"` // original file name including extension, e.g. "a01.tif"
	Size   int64      `json:"size"`
	Source FileSource `json:"-"`
}

// BaseName returns the file name without its extension.
func (f ImageFile) BaseName() string {
	base, _ := SplitFileName(f.Name)
	return base
}

// SplitFileName splits "name.ext" at the last dot. The extension is lowercased.
func SplitFileName(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.ToLower(name[i+1:])
}

// CheckImageFileName enforces the binding rule for raster files: tif/tiff
// extension and a [a-z0-9]+ base name.
func CheckImageFileName(name string) error {
	base, ext := SplitFileName(name)
	if ext != "tif" && ext != "tiff" {
		return &EntityError{Kind: ErrInvalidImageFile, Detail: "solo archivos .tif o .tiff"}
	}
	if !IsWellFormedName(base) {
		return &EntityError{Kind: ErrInvalidImageFile, Detail: "el nombre del archivo solo puede tener números y minúsculas"}
	}
	return nil
}

// Image is a source raster slot.
type Image struct {
	ID   EntityID   `json:"id"`
	File *ImageFile `json:"file"` // nil until a file is bound
}

// Group is a work group.
type Group struct {
	ID   EntityID `json:"id"`
	Name string   `json:"name"`
}

// Member is a team member.
type Member struct {
	ID        EntityID `json:"id"`
	UserName  string   `json:"username"` // local part of the institutional email
	Role      Role     `json:"role"`
	Container bool     `json:"container"` // schema container flag; at most one member holds it
}

// Registry holds the three ordered entity collections. Position equals index.
type Registry struct {
	images  []Image
	groups  []Group
	members []Member
}

// Count returns the size of one collection.
func (r *Registry) Count(k Kind) int {
	switch k {
	case KindImage:
		return len(r.images)
	case KindGroup:
		return len(r.groups)
	case KindMember:
		return len(r.members)
	}
	return 0
}

// Has reports whether id names a live entity.
func (r *Registry) Has(id EntityID) bool {
	return id.Index >= 0 && id.Index < r.Count(id.Kind)
}

// Images returns a copy of the image collection in creation order.
func (r *Registry) Images() []Image { return append([]Image(nil), r.images...) }

// Groups returns a copy of the group collection in creation order.
func (r *Registry) Groups() []Group { return append([]Group(nil), r.groups...) }

// Members returns a copy of the member collection in creation order.
func (r *Registry) Members() []Member { return append([]Member(nil), r.members...) }

// Image returns the image at id.
func (r *Registry) Image(id EntityID) (Image, bool) {
	if id.Kind != KindImage || !r.Has(id) {
		return Image{}, false
	}
	return r.images[id.Index], true
}

// Group returns the group at id.
func (r *Registry) Group(id EntityID) (Group, bool) {
	if id.Kind != KindGroup || !r.Has(id) {
		return Group{}, false
	}
	return r.groups[id.Index], true
}

// Member returns the member at id.
func (r *Registry) Member(id EntityID) (Member, bool) {
	if id.Kind != KindMember || !r.Has(id) {
		return Member{}, false
	}
	return r.members[id.Index], true
}

// Container returns the member holding the container flag, if any.
func (r *Registry) Container() (Member, bool) {
	for _, m := range r.members {
		if m.Container {
			return m, true
		}
	}
	return Member{}, false
}

// resize keeps entities below n and creates fresh ones up to n.
func (r *Registry) resize(k Kind, n int, mode Mode) {
	switch k {
	case KindImage:
		if n <= len(r.images) {
			r.images = r.images[:n:n]
			return
		}
		for i := len(r.images); i < n; i++ {
			r.images = append(r.images, Image{ID: ImageID(i)})
		}
	case KindGroup:
		if n <= len(r.groups) {
			r.groups = r.groups[:n:n]
			return
		}
		for i := len(r.groups); i < n; i++ {
			r.groups = append(r.groups, Group{ID: GroupID(i)})
		}
	case KindMember:
		if n <= len(r.members) {
			r.members = r.members[:n:n]
			return
		}
		for i := len(r.members); i < n; i++ {
			r.members = append(r.members, Member{ID: MemberID(i), Role: mode.DefaultRole()})
		}
	}
}

// resetRoles puts every member back on the mode's default role without a container flag.
func (r *Registry) resetRoles(mode Mode) {
	for i := range r.members {
		r.members[i].Role = mode.DefaultRole()
		r.members[i].Container = false
	}
}

func (r *Registry) clearContainer() {
	for i := range r.members {
		r.members[i].Container = false
	}
}

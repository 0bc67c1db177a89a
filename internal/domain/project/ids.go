// internal/domain/project/ids.go
package project

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the entity variant an EntityID points at.
type Kind uint8

const (
	KindImage Kind = iota + 1
	KindGroup
	KindMember
)

// wire prefixes used by the browser and the processing backend.
const (
	imagePrefix  = "imagen"
	groupPrefix  = "grupo"
	memberPrefix = "miembro"
)

// String returns the wire prefix for the kind ("imagen", "grupo", "miembro").
func (k Kind) String() string {
	switch k {
	case KindImage:
		return imagePrefix
	case KindGroup:
		return groupPrefix
	case KindMember:
		return memberPrefix
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind accepts both the wire prefixes and the plural collection names used
// in API paths ("images", "groups", "members").
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case imagePrefix, "image", "images":
		return KindImage, true
	case groupPrefix, "group", "groups":
		return KindGroup, true
	case memberPrefix, "member", "members":
		return KindMember, true
	}
	return 0, false
}

// EntityID identifies one entity by variant and zero-based position.
// The zero value is not a valid identifier.
type EntityID struct {
	Kind  Kind
	Index int
}

func ImageID(i int) EntityID  { return EntityID{Kind: KindImage, Index: i} }
func GroupID(i int) EntityID  { return EntityID{Kind: KindGroup, Index: i} }
func MemberID(i int) EntityID { return EntityID{Kind: KindMember, Index: i} }

// IsZero reports whether id is the zero value.
func (id EntityID) IsZero() bool { return id.Kind == 0 }

// String renders the identifier the way the backend expects it, e.g. "grupo-3".
func (id EntityID) String() string {
	return id.Kind.String() + "-" + strconv.Itoa(id.Index)
}

// MarshalText lets EntityID travel as a JSON string.
func (id EntityID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("marshal zero entity id")
	}
	return []byte(id.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (id *EntityID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseEntityID parses "{prefix}-{index}". It is only used at the API boundary;
// nothing inside the engine parses identifiers.
func ParseEntityID(s string) (EntityID, error) {
	prefix, idx, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return EntityID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	var kind Kind
	switch prefix {
	case imagePrefix:
		kind = KindImage
	case groupPrefix:
		kind = KindGroup
	case memberPrefix:
		kind = KindMember
	default:
		return EntityID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 || strconv.Itoa(n) != idx {
		return EntityID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return EntityID{Kind: kind, Index: n}, nil
}

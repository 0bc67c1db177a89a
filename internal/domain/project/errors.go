// internal/domain/project/errors.go
package project

import (
	"errors"
	"fmt"
)

// Structural errors. These reject a mutation before it reaches the model.
var (
	ErrDuplicateAssociation = errors.New("association already exists")
	ErrIllegalEndpointPair  = errors.New("illegal endpoint pair")
	ErrGroupAlreadyHasImage = errors.New("group already has an image")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrUnknownAssociation   = errors.New("unknown association")
	ErrMalformedID          = errors.New("malformed entity id")
	ErrNegativeCount        = errors.New("count must not be negative")
	ErrIllegalRole          = errors.New("role not allowed in current mode")
	ErrContainerRole        = errors.New("container flag requires a Tutor or Líder")
	ErrInvalidImageFile     = errors.New("invalid image file")
	ErrWrongKind            = errors.New("entity has the wrong kind")
)

// GraphError wraps a structural rejection with the offending key.
type GraphError struct {
	Kind error
	Key  Key
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s -> %s", e.Kind.Error(), e.Key.From, e.Key.To)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func graphErr(kind error, k Key) error {
	return &GraphError{Kind: kind, Key: k}
}

// EntityError wraps an attribute rejection with the entity it targeted.
type EntityError struct {
	Kind   error
	ID     EntityID
	Detail string
}

func (e *EntityError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.ID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.ID, e.Detail)
}

func (e *EntityError) Unwrap() error { return e.Kind }

func entityErr(kind error, id EntityID, detail string) error {
	return &EntityError{Kind: kind, ID: id, Detail: detail}
}

package metadata

import "errors"

// Prefix starts every metadata error message.
const Prefix = "Create or update table Exception : "

// Kind tells which piece of mapping metadata is missing.
type Kind int

const (
	KindSchemaMetadata Kind = iota
	KindTableNameNotFound
	KindColumnAnnotationNotFound
)

// defaultDetail is used when an error is built without a detail.
func (k Kind) defaultDetail() string {
	switch k {
	case KindTableNameNotFound:
		return "Table name not found."
	case KindColumnAnnotationNotFound:
		return "Column Annotation not found."
	default:
		return "Schema metadata not found."
	}
}

func (k Kind) String() string {
	switch k {
	case KindTableNameNotFound:
		return "TABLE_NAME_NOT_FOUND"
	case KindColumnAnnotationNotFound:
		return "COLUMN_ANNOTATION_NOT_FOUND"
	default:
		return "SCHEMA_METADATA"
	}
}

// Sentinels for errors.Is. Every Error matches ErrSchemaMetadata.
var (
	ErrSchemaMetadata           = &Error{Kind: KindSchemaMetadata}
	ErrTableNameNotFound        = &Error{Kind: KindTableNameNotFound}
	ErrColumnAnnotationNotFound = &Error{Kind: KindColumnAnnotationNotFound}
)

// Error reports mapping metadata a model lacks.
type Error struct {
	Kind   Kind
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

// NewError creates a base schema metadata error.
func NewError(detail string) *Error {
	return &Error{Kind: KindSchemaMetadata, Detail: detail}
}

// NewTableNameNotFound reports a model without a table name.
func NewTableNameNotFound(detail string) *Error {
	return &Error{Kind: KindTableNameNotFound, Detail: detail}
}

// NewColumnAnnotationNotFound reports a field without a column mapping.
func NewColumnAnnotationNotFound(detail string) *Error {
	return &Error{Kind: KindColumnAnnotationNotFound, Detail: detail}
}

func (e *Error) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = e.Kind.defaultDetail()
	}
	return Prefix + detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind. ErrSchemaMetadata matches any kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == KindSchemaMetadata || t.Kind == e.Kind
}

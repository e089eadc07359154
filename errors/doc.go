// Package errors provides structured error types for the candid module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, Go/IDL type names, byte offset,
// and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("arg[0]", "name").
//		GoType("int").
//		IDLType("text").
//		Detail("cannot encode integer as text").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseEncode, path, "int", "text")
//	err := errors.UnexpectedEOF(path, 17, 4)
//
// The package-level sentinels (ErrTypeMismatch, ErrUnexpectedEOF, ErrMissingField,
// ErrUnknownVariant, ErrRangeOverflow, ErrSchema) match any error of their Kind
// regardless of Phase:
//
//	if errors.Is(err, cerrors.ErrMissingField) { ... }
package errors

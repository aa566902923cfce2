// Package errs holds the error taxonomy shared by every component of the
// record-and-graph engine. Each kind is a sentinel that callers match with
// errors.Is; component packages wrap it with github.com/pkg/errors to carry
// call-site context without losing the sentinel identity.
package errs

import "github.com/pkg/errors"

// Sentinel errors, one per taxonomy row in the engine's error design.
var (
	// ErrCodec is raised by the tuple codec when asked to pack or unpack
	// an unsupported element kind.
	ErrCodec = errors.New("codec: unsupported element")

	// ErrInvalidTransition is raised by the index-state machine on any
	// transition other than disabled->writeOnly or writeOnly->readable.
	ErrInvalidTransition = errors.New("index state: invalid transition")

	// ErrIndexState is raised when a scan targets an index that is not
	// readable, or a write targets an index that is disabled.
	ErrIndexState = errors.New("index state: not usable for this operation")

	// ErrIndexNotFound is raised when a requested index name is absent
	// from a record type's descriptor list.
	ErrIndexNotFound = errors.New("index: not found")

	// ErrPath is raised by the property-path executor on a malformed AST.
	ErrPath = errors.New("property path: malformed")

	// ErrInvalidKNNParameters is raised by spatial KNN validation.
	ErrInvalidKNNParameters = errors.New("spatial: invalid knn parameters")

	// ErrInvalidRadius is raised by spatial radius-query validation.
	ErrInvalidRadius = errors.New("spatial: invalid radius")

	// ErrInvalidPolygon is raised by spatial polygon-query validation.
	ErrInvalidPolygon = errors.New("spatial: invalid polygon")

	// ErrNoConstraint is raised when a spatial query supplies none of the
	// required filters.
	ErrNoConstraint = errors.New("spatial: query lacks required constraint")

	// ErrRegularityViolation is raised by the tableau reasoner when the
	// ontology fails the DL regularity check and the reasoner is
	// configured to abort rather than proceed best-effort.
	ErrRegularityViolation = errors.New("reasoner: ontology fails regularity check")
)

// Wrap attaches call-site context to a sentinel error while preserving its
// identity for errors.Is / errors.As.
func Wrap(sentinel error, context string) error {
	return errors.Wrap(sentinel, context)
}

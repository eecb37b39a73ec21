package farmz

import "errors"

var (
	// ErrNilGroup is the panic value for a nil group passed to a Farm.
	ErrNilGroup = errors.New("farmz: nil group")
	// ErrAlreadyRegistered is returned when a group is registered twice.
	ErrAlreadyRegistered = errors.New("farmz: group already registered")
	// ErrNotRegistered is returned when deregistering an unknown group.
	ErrNotRegistered = errors.New("farmz: group not registered")
	// ErrGroupSealed is the panic value for registering a metric after the
	// group's aggregator has been sized.
	ErrGroupSealed = errors.New("farmz: group is sealed")
	// ErrDuplicateMetric is the panic value for registering a key twice.
	ErrDuplicateMetric = errors.New("farmz: duplicate metric key")
	// ErrForeignHandle is the panic value for a handle issued by another
	// group, or a zero handle.
	ErrForeignHandle = errors.New("farmz: handle does not belong to this group")
	// ErrWriterClosed is the panic value for using a closed Writer.
	ErrWriterClosed = errors.New("farmz: writer is closed")
	// ErrInvalidBoundaries is returned for empty, oversized or unordered
	// bucket boundaries.
	ErrInvalidBoundaries = errors.New("farmz: invalid bucket boundaries")
)

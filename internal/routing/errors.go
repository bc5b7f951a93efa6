package routing

import "fmt"

// Reason says why a request could not be routed.
type Reason int

const (
	// ReasonNoPartitionKey means the WHERE clause does not pin the
	// partition-key column to a string literal.
	ReasonNoPartitionKey Reason = iota + 1
	// ReasonUnknownContainer means the logical container is not registered.
	ReasonUnknownContainer
)

func (r Reason) String() string {
	switch r {
	case ReasonNoPartitionKey:
		return "no partition key"
	case ReasonUnknownContainer:
		return "unknown container"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// RoutingError is a client-side routing failure.
type RoutingError struct {
	Reason    Reason
	Container string
	Column    string // partition-key column, set for ReasonNoPartitionKey
}

func (e *RoutingError) Error() string {
	switch e.Reason {
	case ReasonNoPartitionKey:
		return fmt.Sprintf("query on %q must filter on partition key %q with an equality on a string", e.Container, e.Column)
	case ReasonUnknownContainer:
		return fmt.Sprintf("container %q not found", e.Container)
	default:
		return fmt.Sprintf("cannot route request for %q: %s", e.Container, e.Reason)
	}
}

// NoPartitionKey builds the error for a query that does not pin column.
func NoPartitionKey(container, column string) *RoutingError {
	return &RoutingError{Reason: ReasonNoPartitionKey, Container: container, Column: column}
}

// UnknownContainer builds the error for an unregistered container.
func UnknownContainer(container string) *RoutingError {
	return &RoutingError{Reason: ReasonUnknownContainer, Container: container}
}

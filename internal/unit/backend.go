package unit

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnitExists is returned by Backend.CreateUnit when a unit with the same
// name already exists.
var ErrUnitExists = errors.New("unit already exists")

// Spec describes a unit to create.
type Spec struct {
	Name       string
	Image      string
	Network    string // network shared with the gateway
	Volume     string
	DataPath   string // mount point of Volume inside the unit
	User       string // must be able to read and write DataPath
	Port       int
	AutoRemove bool
}

// Backend is the orchestration surface units are provisioned on.
type Backend interface {
	// UnitRunning reports whether a unit with exactly this name is running.
	UnitRunning(ctx context.Context, name string) (bool, error)
	// EnsureVolume creates the named volume unless it exists.
	EnsureVolume(ctx context.Context, name string) error
	// CreateUnit creates a stopped unit and returns its backend id. It returns
	// an error wrapping ErrUnitExists on a name conflict.
	CreateUnit(ctx context.Context, spec Spec) (string, error)
	// StartUnit starts a created unit by id or name.
	StartUnit(ctx context.Context, id string) error
}

// Provisioning steps reported in ProvisioningError.Op.
const (
	OpLookup   = "lookup"
	OpThrottle = "throttle"
	OpVolume   = "volume"
	OpCreate   = "create"
	OpStart    = "start"
	OpWait     = "wait"
)

// ProvisioningError reports a failed provisioning step. Failures are not
// retried and partially created resources are left in place.
type ProvisioningError struct {
	Unit string
	Op   string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision unit %s: %s: %v", e.Unit, e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Package registry is the process-wide (or builder-local) table of typed
// constructors keyed by (subtype, model), matching §4.1. It owns no mutable
// state visible to resources; it is a pure lookup.
package registry

import (
	"fmt"
	"sync"

	"github.com/viamrobotics/micro-rdk-go/internal/config"
	"github.com/viamrobotics/micro-rdk-go/internal/resource"
)

// Deps is the resolved set of dependency resources passed into a
// Constructor, keyed by the dependency's resource key.
type Deps map[resource.Key]resource.Variant

// Constructor builds one driver instance from its configuration and
// resolved dependencies. Constructors are synchronous and must not block
// longer than the hardware requires for device initialization (§5).
type Constructor func(deps Deps, cfg config.Component) (interface{}, error)

// DependencyGetter returns the resource keys a (subtype, model) constructor
// will require, derived from that component's own configuration (e.g. a
// motor config naming the encoder it depends on).
type DependencyGetter func(cfg config.Component) ([]resource.Key, error)

var (
	// ErrAlreadyRegistered is returned by every register_* operation when
	// the (subtype, model) pair already has an entry.
	ErrAlreadyRegistered = fmt.Errorf("already registered")
	// ErrNotFound is returned by every get_* lookup operation on a miss.
	ErrNotFound = fmt.Errorf("not found")
	// ErrSubtypeNotRecognized is returned when a subtype outside the closed
	// set in §3 is used.
	ErrSubtypeNotRecognized = fmt.Errorf("subtype not recognized")
	// ErrBuildStarted is returned by any register_* call made after the
	// first resource graph build has begun (§4.1: "no registration is
	// permitted after the first resource graph build begins").
	ErrBuildStarted = fmt.Errorf("registry closed: resource graph build already started")
)

type modelKey struct {
	subtype resource.Subtype
	model   string
}

// Registry is the mapping from subtype -> model -> constructor, plus the
// parallel subtype -> model -> dependency-getter mapping.
type Registry struct {
	mu           sync.RWMutex
	constructors map[modelKey]Constructor
	depGetters   map[modelKey]DependencyGetter
	buildStarted bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		constructors: make(map[modelKey]Constructor),
		depGetters:   make(map[modelKey]DependencyGetter),
	}
}

// MarkBuildStarted closes the registry to further registration; called once
// by the resource graph builder before its first pass.
func (r *Registry) MarkBuildStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buildStarted = true
}

func (r *Registry) register(subtype resource.Subtype, model string, ctor Constructor) error {
	if !subtype.Valid() {
		return ErrSubtypeNotRecognized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buildStarted {
		return ErrBuildStarted
	}
	key := modelKey{subtype, model}
	if _, exists := r.constructors[key]; exists {
		return ErrAlreadyRegistered
	}
	r.constructors[key] = ctor
	return nil
}

// RegisterBoard registers a constructor for the board subtype.
func (r *Registry) RegisterBoard(model string, ctor Constructor) error {
	return r.register(resource.SubtypeBoard, model, ctor)
}

// RegisterMotor registers a constructor for the motor subtype.
func (r *Registry) RegisterMotor(model string, ctor Constructor) error {
	return r.register(resource.SubtypeMotor, model, ctor)
}

// RegisterBase registers a constructor for the base subtype.
func (r *Registry) RegisterBase(model string, ctor Constructor) error {
	return r.register(resource.SubtypeBase, model, ctor)
}

// RegisterSensor registers a constructor for the sensor subtype.
func (r *Registry) RegisterSensor(model string, ctor Constructor) error {
	return r.register(resource.SubtypeSensor, model, ctor)
}

// RegisterMovementSensor registers a constructor for the movement_sensor subtype.
func (r *Registry) RegisterMovementSensor(model string, ctor Constructor) error {
	return r.register(resource.SubtypeMovementSensor, model, ctor)
}

// RegisterEncoder registers a constructor for the encoder subtype.
func (r *Registry) RegisterEncoder(model string, ctor Constructor) error {
	return r.register(resource.SubtypeEncoder, model, ctor)
}

// RegisterPowerSensor registers a constructor for the power_sensor subtype.
func (r *Registry) RegisterPowerSensor(model string, ctor Constructor) error {
	return r.register(resource.SubtypePowerSensor, model, ctor)
}

// RegisterServo registers a constructor for the servo subtype.
func (r *Registry) RegisterServo(model string, ctor Constructor) error {
	return r.register(resource.SubtypeServo, model, ctor)
}

// RegisterGeneric registers a constructor for the generic subtype.
func (r *Registry) RegisterGeneric(model string, ctor Constructor) error {
	return r.register(resource.SubtypeGeneric, model, ctor)
}

// RegisterCamera registers a constructor for the camera subtype.
func (r *Registry) RegisterCamera(model string, ctor Constructor) error {
	return r.register(resource.SubtypeCamera, model, ctor)
}

// RegisterDependencyGetter registers the dependency-declaration function for
// a (subtype, model) pair.
func (r *Registry) RegisterDependencyGetter(subtype resource.Subtype, model string, getter DependencyGetter) error {
	if !subtype.Valid() {
		return ErrSubtypeNotRecognized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buildStarted {
		return ErrBuildStarted
	}
	key := modelKey{subtype, model}
	if _, exists := r.depGetters[key]; exists {
		return ErrAlreadyRegistered
	}
	r.depGetters[key] = getter
	return nil
}

// ConstructorFor looks up the constructor for (subtype, model).
func (r *Registry) ConstructorFor(subtype resource.Subtype, model string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[modelKey{subtype, model}]
	if !ok {
		return nil, ErrNotFound
	}
	return ctor, nil
}

// DependencyGetterFor looks up the dependency-declaration function for
// (subtype, model). A constructor with no declared dependencies may have no
// entry here; callers should treat ErrNotFound as "no dependencies".
func (r *Registry) DependencyGetterFor(subtype resource.Subtype, model string) (DependencyGetter, error) {
	if !subtype.Valid() {
		return nil, ErrSubtypeNotRecognized
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	getter, ok := r.depGetters[modelKey{subtype, model}]
	if !ok {
		return nil, ErrNotFound
	}
	return getter, nil
}

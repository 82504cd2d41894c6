// Package config holds the component configuration descriptor fetched from
// the cloud control plane (or, on the static path, from a local file in the
// same shape) and the recursive attribute value used inside it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viamrobotics/micro-rdk-go/internal/resource"
)

var (
	// ErrMissingModelPrefix is returned when a model string does not carry
	// the required "{namespace}:builtin:" prefix.
	ErrMissingModelPrefix = errors.New("model string missing namespace:builtin: prefix")
	// ErrEmptyModelResidue is returned when stripping the prefix leaves an
	// empty bare model name.
	ErrEmptyModelResidue = errors.New("model string has empty residue after stripping prefix")
)

// Component is the immutable descriptor for one driver instance, as parsed
// from the cloud manifest. Non-goal: the wire encoding of the manifest
// itself; this type is the already-decoded shape.
type Component struct {
	Name       string
	Namespace  string
	Subtype    resource.Subtype
	Model      string // fully-qualified, e.g. "acme:builtin:servo42"
	Attributes Attributes
	DataCollectors []DataCollectorConfig
}

// DataCollectorConfig is an opaque sub-configuration attached to a
// component; the core only carries it through, data collection itself is
// out of scope (§1).
type DataCollectorConfig struct {
	Name       string
	Attributes Attributes
}

// ResourceName returns the fully-qualified resource name for this component.
func (c Component) ResourceName() resource.Name {
	return resource.NewName(c.Namespace, c.Subtype, c.Name)
}

// DependencyKey returns the resource key by which other components may
// declare a dependency on this one.
func (c Component) DependencyKey() resource.Key {
	return resource.Key{Subtype: c.Subtype, Name: c.Name}
}

// BareModel strips the "{namespace}:builtin:" prefix required of every
// model string (§3, invariant 3 in §8). It is the single enforcement point
// for model-prefix validation ahead of any constructor lookup.
func (c Component) BareModel() (string, error) {
	prefix := c.Namespace + ":builtin:"
	if !strings.HasPrefix(c.Model, prefix) {
		return "", fmt.Errorf("%w: %q does not start with %q", ErrMissingModelPrefix, c.Model, prefix)
	}
	bare := strings.TrimPrefix(c.Model, prefix)
	if bare == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyModelResidue, c.Model)
	}
	return bare, nil
}

// Package resource defines the addressing scheme for live driver instances:
// names, dependency keys, and the tagged-union variant that holds the
// driver handle the RPC dispatcher invokes operations on.
package resource

import "fmt"

// Subtype is the closed set of capability families the core recognises.
type Subtype string

const (
	SubtypeBoard           Subtype = "board"
	SubtypeMotor           Subtype = "motor"
	SubtypeBase            Subtype = "base"
	SubtypeSensor          Subtype = "sensor"
	SubtypeMovementSensor  Subtype = "movement_sensor"
	SubtypeEncoder         Subtype = "encoder"
	SubtypePowerSensor     Subtype = "power_sensor"
	SubtypeServo           Subtype = "servo"
	SubtypeGeneric         Subtype = "generic"
	SubtypeCamera          Subtype = "camera"
)

// Subtypes lists every recognised subtype, in registration order.
var Subtypes = []Subtype{
	SubtypeBoard,
	SubtypeMotor,
	SubtypeBase,
	SubtypeSensor,
	SubtypeMovementSensor,
	SubtypeEncoder,
	SubtypePowerSensor,
	SubtypeServo,
	SubtypeGeneric,
	SubtypeCamera,
}

// Valid reports whether s is one of the closed set of recognised subtypes.
func (s Subtype) Valid() bool {
	for _, known := range Subtypes {
		if s == known {
			return true
		}
	}
	return false
}

// Name is the tuple key under which a live resource is addressable.
// Kind is always "component"; it is carried explicitly because other kinds
// (services, remotes) exist in the wider RDK but are out of scope here.
type Name struct {
	Namespace string
	Kind      string
	Subtype   Subtype
	Name      string
}

// NewName builds a component resource name in the given namespace.
func NewName(namespace string, subtype Subtype, name string) Name {
	return Name{Namespace: namespace, Kind: "component", Subtype: subtype, Name: name}
}

func (n Name) String() string {
	return fmt.Sprintf("%s:%s:%s/%s", n.Namespace, n.Kind, n.Subtype, n.Name)
}

// Key expresses a dependency edge without committing to a full resource
// name: a component depends on "the encoder named enc1", regardless of
// which namespace eventually provides it.
type Key struct {
	Subtype Subtype
	Name    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Subtype, k.Name)
}

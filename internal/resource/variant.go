package resource

import "context"

// Closeable is implemented by drivers that must run a final hardware
// command (stop motors, sleep a sensor) when torn down.
type Closeable interface {
	Close(ctx context.Context) error
}

// Doer is the generic fallback operation every subtype supports, used by
// the RPC dispatcher for methods that have no narrower typed signature.
type Doer interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// Board is the capability set the board subtype exposes.
type Board interface {
	Doer
	GPIOPinByName(name string) (GPIOPin, error)
}

// GPIOPin is a single addressable pin on a Board.
type GPIOPin interface {
	Set(ctx context.Context, high bool) error
	Get(ctx context.Context) (bool, error)
	SetPWM(ctx context.Context, dutyCyclePct float64) error
}

// Encoder reports a rotational or linear position.
type Encoder interface {
	Doer
	Position(ctx context.Context) (float64, error)
	ResetPosition(ctx context.Context) error
}

// Motor drives a single actuator, optionally backed by an Encoder.
type Motor interface {
	Doer
	Closeable
	SetPower(ctx context.Context, powerPct float64) error
	GoFor(ctx context.Context, rpm, revolutions float64) error
	Stop(ctx context.Context) error
	IsPowered(ctx context.Context) (bool, float64, error)
	Position(ctx context.Context) (float64, error)
}

// Base drives a mobile chassis built from one or more motors.
type Base interface {
	Doer
	Closeable
	MoveStraight(ctx context.Context, distanceMM int, mmPerSec float64) error
	Spin(ctx context.Context, angleDeg, degsPerSec float64) error
	Stop(ctx context.Context) error
}

// Sensor returns an arbitrary reading map; narrower subtypes (MovementSensor,
// PowerSensor) add typed accessors on top of the same Readings contract.
type Sensor interface {
	Doer
	Readings(ctx context.Context) (map[string]interface{}, error)
}

// MovementSensor reports orientation/velocity/position readings.
type MovementSensor interface {
	Sensor
	LinearVelocity(ctx context.Context) (Vector3, error)
	AngularVelocity(ctx context.Context) (Vector3, error)
}

// PowerSensor reports voltage/current/power readings.
type PowerSensor interface {
	Sensor
	Voltage(ctx context.Context) (volts float64, isAC bool, err error)
	Current(ctx context.Context) (amps float64, isAC bool, err error)
	Power(ctx context.Context) (watts float64, err error)
}

// Servo positions an actuator by angle.
type Servo interface {
	Doer
	Closeable
	Move(ctx context.Context, angleDeg uint32) error
	Position(ctx context.Context) (uint32, error)
	Stop(ctx context.Context) error
}

// Generic is the escape hatch subtype: only DoCommand is required.
type Generic interface {
	Doer
}

// Camera returns the most recent frame as encoded image bytes plus MIME type.
type Camera interface {
	Doer
	Closeable
	Image(ctx context.Context) (data []byte, mimeType string, err error)
}

// Vector3 is a minimal 3-axis reading shared by movement sensor operations.
type Vector3 struct {
	X, Y, Z float64
}

// Variant is a tagged union with one slot per subtype. Invariant: for any
// live resource, exactly one field is non-nil, and that field's capability
// set covers every operation the RPC layer may invoke against it.
type Variant struct {
	Board          Board
	Motor          Motor
	Base           Base
	Sensor         Sensor
	MovementSensor MovementSensor
	Encoder        Encoder
	PowerSensor    PowerSensor
	Servo          Servo
	Generic        Generic
	Camera         Camera
}

// Subtype returns the tag of the one populated field, or "" if the variant
// is empty (a construction bug — never expected on a committed variant).
func (v Variant) Subtype() Subtype {
	switch {
	case v.Board != nil:
		return SubtypeBoard
	case v.Motor != nil:
		return SubtypeMotor
	case v.Base != nil:
		return SubtypeBase
	case v.Sensor != nil:
		return SubtypeSensor
	case v.MovementSensor != nil:
		return SubtypeMovementSensor
	case v.Encoder != nil:
		return SubtypeEncoder
	case v.PowerSensor != nil:
		return SubtypePowerSensor
	case v.Servo != nil:
		return SubtypeServo
	case v.Generic != nil:
		return SubtypeGeneric
	case v.Camera != nil:
		return SubtypeCamera
	default:
		return ""
	}
}

// Closeable returns the populated field if it implements Closeable, for use
// during reverse-order teardown.
func (v Variant) Closeable() (Closeable, bool) {
	var c interface{}
	switch v.Subtype() {
	case SubtypeBoard:
		c = v.Board
	case SubtypeMotor:
		c = v.Motor
	case SubtypeBase:
		c = v.Base
	case SubtypeSensor:
		c = v.Sensor
	case SubtypeMovementSensor:
		c = v.MovementSensor
	case SubtypeEncoder:
		c = v.Encoder
	case SubtypePowerSensor:
		c = v.PowerSensor
	case SubtypeServo:
		c = v.Servo
	case SubtypeGeneric:
		c = v.Generic
	case SubtypeCamera:
		c = v.Camera
	default:
		return nil, false
	}
	closeable, ok := c.(Closeable)
	return closeable, ok
}

// VariantFor wraps a single driver handle into the variant slot matching
// subtype. It returns false if impl does not satisfy that subtype's
// capability set, per the variant invariant in §3.
func VariantFor(subtype Subtype, impl interface{}) (Variant, bool) {
	switch subtype {
	case SubtypeBoard:
		if b, ok := impl.(Board); ok {
			return Variant{Board: b}, true
		}
	case SubtypeMotor:
		if m, ok := impl.(Motor); ok {
			return Variant{Motor: m}, true
		}
	case SubtypeBase:
		if b, ok := impl.(Base); ok {
			return Variant{Base: b}, true
		}
	case SubtypeSensor:
		if s, ok := impl.(Sensor); ok {
			return Variant{Sensor: s}, true
		}
	case SubtypeMovementSensor:
		if m, ok := impl.(MovementSensor); ok {
			return Variant{MovementSensor: m}, true
		}
	case SubtypeEncoder:
		if e, ok := impl.(Encoder); ok {
			return Variant{Encoder: e}, true
		}
	case SubtypePowerSensor:
		if p, ok := impl.(PowerSensor); ok {
			return Variant{PowerSensor: p}, true
		}
	case SubtypeServo:
		if s, ok := impl.(Servo); ok {
			return Variant{Servo: s}, true
		}
	case SubtypeGeneric:
		if g, ok := impl.(Generic); ok {
			return Variant{Generic: g}, true
		}
	case SubtypeCamera:
		if c, ok := impl.(Camera); ok {
			return Variant{Camera: c}, true
		}
	}
	return Variant{}, false
}

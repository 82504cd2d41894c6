package rpcserver

import (
	"context"
	"fmt"

	"github.com/viamrobotics/micro-rdk-go/internal/resource"
)

// invoke calls the named operation on variant's populated field. The
// operation vocabulary per subtype mirrors the RDK's component service
// methods; DoCommand is the generic fallback every subtype accepts.
func invoke(ctx context.Context, variant resource.Variant, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch variant.Subtype() {
	case resource.SubtypeBoard:
		return invokeBoard(ctx, variant.Board, operation, args)
	case resource.SubtypeMotor:
		return invokeMotor(ctx, variant.Motor, operation, args)
	case resource.SubtypeBase:
		return invokeBase(ctx, variant.Base, operation, args)
	case resource.SubtypeSensor:
		return invokeSensor(ctx, variant.Sensor, operation, args)
	case resource.SubtypeMovementSensor:
		return invokeMovementSensor(ctx, variant.MovementSensor, operation, args)
	case resource.SubtypeEncoder:
		return invokeEncoder(ctx, variant.Encoder, operation, args)
	case resource.SubtypePowerSensor:
		return invokePowerSensor(ctx, variant.PowerSensor, operation, args)
	case resource.SubtypeServo:
		return invokeServo(ctx, variant.Servo, operation, args)
	case resource.SubtypeGeneric:
		return invokeDoer(ctx, variant.Generic, operation, args)
	case resource.SubtypeCamera:
		return invokeCamera(ctx, variant.Camera, operation, args)
	default:
		return nil, fmt.Errorf("rpcserver: empty variant has no operations")
	}
}

func unknownOperation(subtype resource.Subtype, operation string) error {
	return fmt.Errorf("rpcserver: %s has no operation %q", subtype, operation)
}

func float64Arg(args map[string]interface{}, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}

func intArg(args map[string]interface{}, key string) int {
	return int(float64Arg(args, key))
}

func uint32Arg(args map[string]interface{}, key string) uint32 {
	return uint32(float64Arg(args, key))
}

func boolArg(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func invokeDoer(ctx context.Context, d resource.Doer, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	if operation != "DoCommand" {
		return nil, unknownOperation(resource.SubtypeGeneric, operation)
	}
	return d.DoCommand(ctx, args)
}

func invokeBoard(ctx context.Context, b resource.Board, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return b.DoCommand(ctx, args)
	case "SetGPIO":
		pin, err := b.GPIOPinByName(fmt.Sprint(args["pin"]))
		if err != nil {
			return nil, err
		}
		return nil, pin.Set(ctx, boolArg(args, "high"))
	case "GetGPIO":
		pin, err := b.GPIOPinByName(fmt.Sprint(args["pin"]))
		if err != nil {
			return nil, err
		}
		high, err := pin.Get(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"high": high}, nil
	case "SetPWM":
		pin, err := b.GPIOPinByName(fmt.Sprint(args["pin"]))
		if err != nil {
			return nil, err
		}
		return nil, pin.SetPWM(ctx, float64Arg(args, "duty_cycle_pct"))
	default:
		return nil, unknownOperation(resource.SubtypeBoard, operation)
	}
}

func invokeMotor(ctx context.Context, m resource.Motor, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return m.DoCommand(ctx, args)
	case "SetPower":
		return nil, m.SetPower(ctx, float64Arg(args, "power_pct"))
	case "GoFor":
		return nil, m.GoFor(ctx, float64Arg(args, "rpm"), float64Arg(args, "revolutions"))
	case "Stop":
		return nil, m.Stop(ctx)
	case "IsPowered":
		powered, pct, err := m.IsPowered(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"is_on": powered, "power_pct": pct}, nil
	case "GetPosition":
		pos, err := m.Position(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"position": pos}, nil
	default:
		return nil, unknownOperation(resource.SubtypeMotor, operation)
	}
}

func invokeBase(ctx context.Context, b resource.Base, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return b.DoCommand(ctx, args)
	case "MoveStraight":
		return nil, b.MoveStraight(ctx, intArg(args, "distance_mm"), float64Arg(args, "mm_per_sec"))
	case "Spin":
		return nil, b.Spin(ctx, float64Arg(args, "angle_deg"), float64Arg(args, "degs_per_sec"))
	case "Stop":
		return nil, b.Stop(ctx)
	default:
		return nil, unknownOperation(resource.SubtypeBase, operation)
	}
}

func invokeSensor(ctx context.Context, s resource.Sensor, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return s.DoCommand(ctx, args)
	case "GetReadings":
		return s.Readings(ctx)
	default:
		return nil, unknownOperation(resource.SubtypeSensor, operation)
	}
}

func invokeMovementSensor(ctx context.Context, m resource.MovementSensor, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return m.DoCommand(ctx, args)
	case "GetReadings":
		return m.Readings(ctx)
	case "GetLinearVelocity":
		v, err := m.LinearVelocity(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}, nil
	case "GetAngularVelocity":
		v, err := m.AngularVelocity(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}, nil
	default:
		return nil, unknownOperation(resource.SubtypeMovementSensor, operation)
	}
}

func invokeEncoder(ctx context.Context, e resource.Encoder, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return e.DoCommand(ctx, args)
	case "GetPosition":
		pos, err := e.Position(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"position": pos}, nil
	case "ResetPosition":
		return nil, e.ResetPosition(ctx)
	default:
		return nil, unknownOperation(resource.SubtypeEncoder, operation)
	}
}

func invokePowerSensor(ctx context.Context, p resource.PowerSensor, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return p.DoCommand(ctx, args)
	case "GetReadings":
		return p.Readings(ctx)
	case "GetVoltage":
		volts, isAC, err := p.Voltage(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"volts": volts, "is_ac": isAC}, nil
	case "GetCurrent":
		amps, isAC, err := p.Current(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"amps": amps, "is_ac": isAC}, nil
	case "GetPower":
		watts, err := p.Power(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"watts": watts}, nil
	default:
		return nil, unknownOperation(resource.SubtypePowerSensor, operation)
	}
}

func invokeServo(ctx context.Context, s resource.Servo, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return s.DoCommand(ctx, args)
	case "Move":
		return nil, s.Move(ctx, uint32Arg(args, "angle_deg"))
	case "GetPosition":
		pos, err := s.Position(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"position_deg": pos}, nil
	case "Stop":
		return nil, s.Stop(ctx)
	default:
		return nil, unknownOperation(resource.SubtypeServo, operation)
	}
}

func invokeCamera(ctx context.Context, c resource.Camera, operation string, args map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "DoCommand":
		return c.DoCommand(ctx, args)
	case "GetImage":
		data, mimeType, err := c.Image(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": data, "mime_type": mimeType}, nil
	default:
		return nil, unknownOperation(resource.SubtypeCamera, operation)
	}
}

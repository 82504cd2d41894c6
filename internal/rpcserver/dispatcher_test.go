package rpcserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viamrobotics/micro-rdk-go/internal/config"
	"github.com/viamrobotics/micro-rdk-go/internal/registry"
	"github.com/viamrobotics/micro-rdk-go/internal/resource"
	"github.com/viamrobotics/micro-rdk-go/internal/robot"
)

type stubMotor struct {
	powerPct float64
}

func (m *stubMotor) SetPower(ctx context.Context, powerPct float64) error {
	m.powerPct = powerPct
	return nil
}
func (m *stubMotor) GoFor(ctx context.Context, rpm, revolutions float64) error { return nil }
func (m *stubMotor) Stop(ctx context.Context) error                           { m.powerPct = 0; return nil }
func (m *stubMotor) Close(ctx context.Context) error                          { return m.Stop(ctx) }
func (m *stubMotor) IsPowered(ctx context.Context) (bool, float64, error) {
	return m.powerPct != 0, m.powerPct, nil
}
func (m *stubMotor) Position(ctx context.Context) (float64, error) { return 0, nil }
func (m *stubMotor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return cmd, nil
}

func newTestRobot(t *testing.T) (*robot.Robot, *stubMotor) {
	t.Helper()
	reg := registry.New()
	motor := &stubMotor{}
	require.NoError(t, reg.RegisterMotor("fake", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		return motor, nil
	}))

	configs := []config.Component{
		{Name: "m1", Namespace: "rdk", Subtype: resource.SubtypeMotor, Model: "rdk:builtin:fake"},
	}
	r, err := robot.New(reg, configs)
	require.NoError(t, err)
	return r, motor
}

func TestParseMethodDecodesSubtypeAndOperation(t *testing.T) {
	subtype, op, err := ParseMethod("/viam.component.motor.v1.MotorService/SetPower")
	require.NoError(t, err)
	require.Equal(t, resource.SubtypeMotor, subtype)
	require.Equal(t, "SetPower", op)
}

func TestParseMethodRejectsUnrecognisedSubtype(t *testing.T) {
	_, _, err := ParseMethod("/viam.component.spaceship.v1.SpaceshipService/Launch")
	require.Error(t, err)
}

func TestDispatchInvokesMatchedOperation(t *testing.T) {
	r, motor := newTestRobot(t)
	d := New(r)

	resp := d.Dispatch(context.Background(), Request{
		Method: "/viam.component.motor.v1.MotorService/SetPower",
		Name:   "m1",
		Args:   map[string]interface{}{"power_pct": 0.5},
	})
	require.Equal(t, 0, resp.Status.Code)
	require.Equal(t, 0.5, motor.powerPct)
}

func TestDispatchUnknownResourceIsNotFound(t *testing.T) {
	r, _ := newTestRobot(t)
	d := New(r)

	resp := d.Dispatch(context.Background(), Request{
		Method: "/viam.component.motor.v1.MotorService/SetPower",
		Name:   "does-not-exist",
	})
	require.Equal(t, codeNotFound, resp.Status.Code)
}

func TestDispatchSubtypeMismatchIsInvalidArgument(t *testing.T) {
	r, _ := newTestRobot(t)
	d := New(r)

	resp := d.Dispatch(context.Background(), Request{
		Method: "/viam.component.encoder.v1.EncoderService/GetPosition",
		Name:   "m1", // m1 is a motor, not an encoder
	})
	require.Equal(t, codeInvalidArgument, resp.Status.Code) // m1 exists, but under the motor subtype
}

func TestDispatchGetPositionOnMotor(t *testing.T) {
	r, _ := newTestRobot(t)
	d := New(r)

	resp := d.Dispatch(context.Background(), Request{
		Method: "/viam.component.motor.v1.MotorService/GetPosition",
		Name:   "m1",
	})
	require.Equal(t, 0, resp.Status.Code)
	require.Equal(t, 0.0, resp.Result["position"])
}

package robot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viamrobotics/micro-rdk-go/internal/config"
	"github.com/viamrobotics/micro-rdk-go/internal/registry"
	"github.com/viamrobotics/micro-rdk-go/internal/resource"
	"github.com/viamrobotics/micro-rdk-go/internal/session"
)

// fakeEncoder implements resource.Encoder with a constant position, the
// same "fake" driver shape the teacher's upstream (micro-rdk) uses for
// dependency-graph tests.
type fakeEncoder struct {
	deg float64
}

func (f *fakeEncoder) Position(ctx context.Context) (float64, error) { return f.deg, nil }
func (f *fakeEncoder) ResetPosition(ctx context.Context) error       { f.deg = 0; return nil }
func (f *fakeEncoder) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

// fakeMotor reports the position of whatever encoder it depends on.
type fakeMotor struct {
	enc resource.Encoder
}

func (m *fakeMotor) SetPower(ctx context.Context, powerPct float64) error     { return nil }
func (m *fakeMotor) GoFor(ctx context.Context, rpm, revolutions float64) error { return nil }
func (m *fakeMotor) Stop(ctx context.Context) error                           { return nil }
func (m *fakeMotor) Close(ctx context.Context) error                          { return m.Stop(ctx) }
func (m *fakeMotor) IsPowered(ctx context.Context) (bool, float64, error)     { return false, 0, nil }
func (m *fakeMotor) Position(ctx context.Context) (float64, error) {
	if m.enc == nil {
		return 0, nil
	}
	return m.enc.Position(ctx)
}
func (m *fakeMotor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

func fakeEncoderConfig(name string, deg float64) config.Component {
	return config.Component{
		Name:      name,
		Namespace: "rdk",
		Subtype:   resource.SubtypeEncoder,
		Model:     "rdk:builtin:fake",
		Attributes: config.Attributes{
			"fake_deg": deg,
		},
	}
}

func fakeMotorConfig(name string, dependsOnEncoder string) config.Component {
	return config.Component{
		Name:      name,
		Namespace: "rdk",
		Subtype:   resource.SubtypeMotor,
		Model:     "rdk:builtin:fake",
		Attributes: config.Attributes{
			"encoder": dependsOnEncoder,
		},
	}
}

func registerFakes(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()

	require.NoError(t, reg.RegisterEncoder("fake", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		deg, _ := cfg.Attributes.Float64("fake_deg", false)
		return &fakeEncoder{deg: deg}, nil
	}))

	require.NoError(t, reg.RegisterMotor("fake", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		encName, _ := cfg.Attributes["encoder"].(string)
		var enc resource.Encoder
		if encName != "" {
			v, ok := deps[resource.Key{Subtype: resource.SubtypeEncoder, Name: encName}]
			if ok {
				enc = v.Encoder
			}
		}
		return &fakeMotor{enc: enc}, nil
	}))
	require.NoError(t, reg.RegisterDependencyGetter(resource.SubtypeMotor, "fake", func(cfg config.Component) ([]resource.Key, error) {
		encName, _ := cfg.Attributes["encoder"].(string)
		if encName == "" {
			return nil, nil
		}
		return []resource.Key{{Subtype: resource.SubtypeEncoder, Name: encName}}, nil
	}))

	return reg
}

// S1 Config ingest.
func TestBuildResolvesAllDependencies(t *testing.T) {
	reg := registerFakes(t)
	configs := []config.Component{
		fakeEncoderConfig("enc1", 90),
		fakeMotorConfig("m1", "enc1"),
		fakeMotorConfig("m2", "enc2"),
		fakeEncoderConfig("enc2", 180),
	}

	rm, err := Build(reg, configs)
	require.NoError(t, err)

	for _, name := range []string{"enc1", "enc2", "m1", "m2"} {
		_, _, ok := rm.ByNameAndSubtype(resource.SubtypeEncoder, name)
		if !ok {
			_, _, ok = rm.ByNameAndSubtype(resource.SubtypeMotor, name)
		}
		require.True(t, ok, "expected %s in resource map", name)
	}

	m1, _, ok := rm.ByNameAndSubtype(resource.SubtypeMotor, "m1")
	require.True(t, ok)
	pos, err := m1.Motor.Position(context.Background())
	require.NoError(t, err)
	require.Equal(t, 90.0, pos)

	m2, _, ok := rm.ByNameAndSubtype(resource.SubtypeMotor, "m2")
	require.True(t, ok)
	pos, err = m2.Motor.Position(context.Background())
	require.NoError(t, err)
	require.Equal(t, 180.0, pos)
}

// S2 Missing dependency.
func TestBuildDropsComponentWithMissingDependency(t *testing.T) {
	reg := registerFakes(t)
	configs := []config.Component{
		fakeMotorConfig("m1", "enc1"), // enc1 never defined
		fakeMotorConfig("m2", "enc2"),
		fakeEncoderConfig("enc2", 180),
	}

	rm, err := Build(reg, configs)
	require.NoError(t, err)

	_, _, ok := rm.ByNameAndSubtype(resource.SubtypeMotor, "m1")
	require.False(t, ok, "m1 should be absent: its dependency enc1 never resolves")

	_, _, ok = rm.ByNameAndSubtype(resource.SubtypeMotor, "m2")
	require.True(t, ok)
	_, _, ok = rm.ByNameAndSubtype(resource.SubtypeEncoder, "enc2")
	require.True(t, ok)
}

func TestBareModelPrefixEnforcement(t *testing.T) {
	cfg := config.Component{Namespace: "rdk", Model: "rdk:builtin:fake"}
	bare, err := cfg.BareModel()
	require.NoError(t, err)
	require.Equal(t, "fake", bare)

	cfg.Model = "fake"
	_, err = cfg.BareModel()
	require.ErrorIs(t, err, config.ErrMissingModelPrefix)

	cfg.Model = "rdk:builtin:"
	_, err = cfg.BareModel()
	require.ErrorIs(t, err, config.ErrEmptyModelResidue)
}

func TestDuplicateResourceNameIsRejected(t *testing.T) {
	rm := newResourceMap()
	name := resource.NewName("rdk", resource.SubtypeEncoder, "enc1")
	v := resource.Variant{Encoder: &fakeEncoder{}}
	require.NoError(t, rm.insert(name, v))
	require.Error(t, rm.insert(name, v))
}

func TestBoardConstructedEagerlyAndInjectedAsDependency(t *testing.T) {
	reg := registry.New()
	type fakeBoard struct{ resource.Board }
	require.NoError(t, reg.RegisterBoard("fake", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		return &boardStub{}, nil
	}))
	require.NoError(t, reg.RegisterMotor("fake", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		_, hasBoard := deps[resource.Key{Subtype: resource.SubtypeBoard, Name: "local"}]
		require.True(t, hasBoard, "motor constructor should receive the board dependency implicitly")
		return &fakeMotor{}, nil
	}))

	configs := []config.Component{
		{Name: "local", Namespace: "rdk", Subtype: resource.SubtypeBoard, Model: "rdk:builtin:fake"},
		{Name: "m1", Namespace: "rdk", Subtype: resource.SubtypeMotor, Model: "rdk:builtin:fake"},
	}
	_, err := Build(reg, configs)
	require.NoError(t, err)
}

type boardStub struct{}

func (boardStub) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

// trackingMotor records whether Close was ever called, so a test can assert
// a resource was torn down rather than merely absent.
type trackingMotor struct {
	fakeMotor
	closed *bool
}

func (m *trackingMotor) Close(ctx context.Context) error {
	*m.closed = true
	return m.Stop(ctx)
}

func TestReconfigureKeepsUnchangedAndTearsDownDropped(t *testing.T) {
	reg := registerFakes(t)
	m1Closed := false
	require.NoError(t, reg.RegisterMotor("tracking", func(deps registry.Deps, cfg config.Component) (interface{}, error) {
		return &trackingMotor{closed: &m1Closed}, nil
	}))
	trackingMotorConfig := func(name string) config.Component {
		return config.Component{Name: name, Namespace: "rdk", Subtype: resource.SubtypeMotor, Model: "rdk:builtin:tracking"}
	}

	encCfg := fakeEncoderConfig("enc1", 90)
	m1Cfg := trackingMotorConfig("m1")
	r, err := New(reg, []config.Component{encCfg, m1Cfg})
	require.NoError(t, err)

	_, ok := r.ResourceByName(resource.SubtypeEncoder, "enc1")
	require.True(t, ok)
	_, ok = r.ResourceByName(resource.SubtypeMotor, "m1")
	require.True(t, ok)

	sessions := session.New(2)

	// Reconfigure with only enc1 (byte-identical config): m1 is dropped and
	// must be torn down; enc1 survives untouched.
	require.NoError(t, r.Reconfigure(context.Background(), sessions, []config.Component{encCfg}))

	require.True(t, m1Closed, "dropped motor should have been closed during reconfigure")
	_, ok = r.ResourceByName(resource.SubtypeMotor, "m1")
	require.False(t, ok, "dropped motor should no longer be in the resource map")
	_, ok = r.ResourceByName(resource.SubtypeEncoder, "enc1")
	require.True(t, ok, "unchanged encoder should survive reconfigure")
}

func TestReconfigureRebuildsChangedConfig(t *testing.T) {
	reg := registerFakes(t)
	encCfg := fakeEncoderConfig("enc1", 90)
	r, err := New(reg, []config.Component{encCfg})
	require.NoError(t, err)

	changed := fakeEncoderConfig("enc1", 270)
	require.NoError(t, r.Reconfigure(context.Background(), nil, []config.Component{changed}))

	v, ok := r.ResourceByName(resource.SubtypeEncoder, "enc1")
	require.True(t, ok)
	pos, err := v.Encoder.Position(context.Background())
	require.NoError(t, err)
	require.Equal(t, 270.0, pos, "changed config should have rebuilt the resource")
}
func (boardStub) GPIOPinByName(name string) (resource.GPIOPin, error) { return nil, nil }

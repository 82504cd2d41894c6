// Package robot builds and owns the live resource map: the dependency-order
// fixed-point resolution described in §4.2, and the Robot handle used by
// the RPC dispatcher to look resources up by name.
package robot

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"github.com/viamrobotics/micro-rdk-go/internal/config"
	"github.com/viamrobotics/micro-rdk-go/internal/registry"
	"github.com/viamrobotics/micro-rdk-go/internal/resource"
	"github.com/viamrobotics/micro-rdk-go/internal/session"
)

// Logger is the package-wide logger, silent by default; the entrypoint
// overrides it, mirroring the teacher's `var Logger logr.Logger =
// logr.Discard()` package variable (pkg/sfu/sfu.go).
var Logger logr.Logger = logr.Discard()

// ResourceMap is the resource name -> variant table built by Build. It
// grows monotonically during a build; after that, entries are read-only at
// the map level (mutation happens behind each variant's own lock, which is
// the driver's concern, not the map's).
type ResourceMap struct {
	entries map[resource.Name]resource.Variant
	order   []resource.Name // construction order, for reverse-order teardown
}

func newResourceMap() *ResourceMap {
	return &ResourceMap{entries: make(map[resource.Name]resource.Variant)}
}

// Get returns the variant for name, or false if absent.
func (m *ResourceMap) Get(name resource.Name) (resource.Variant, bool) {
	v, ok := m.entries[name]
	return v, ok
}

// ByNameAndSubtype finds a resource addressed only by (subtype, name),
// scanning namespaces; used by the RPC dispatcher, which receives method
// paths without a namespace component.
func (m *ResourceMap) ByNameAndSubtype(subtype resource.Subtype, name string) (resource.Variant, resource.Name, bool) {
	for rn, v := range m.entries {
		if rn.Subtype == subtype && rn.Name == name {
			return v, rn, true
		}
	}
	return resource.Variant{}, resource.Name{}, false
}

// Names returns every resource name currently in the map.
func (m *ResourceMap) Names() []resource.Name {
	out := make([]resource.Name, 0, len(m.entries))
	for n := range m.entries {
		out = append(out, n)
	}
	return out
}

func (m *ResourceMap) insert(name resource.Name, v resource.Variant) error {
	if _, exists := m.entries[name]; exists {
		// Invariant 2 (§8): the resource map contains at most one entry per
		// resource name; a duplicate insert during one build is an error
		// reported to logs, not a process-fatal condition.
		return fmt.Errorf("duplicate resource name %s", name)
	}
	m.entries[name] = v
	m.order = append(m.order, name)
	return nil
}

// pending is one not-yet-constructed component config still circulating in
// the builder's work queue.
type pending struct {
	cfg config.Component
}

// Build runs the §4.2 algorithm over configs against reg, returning however
// much of the graph could be resolved. Partial graphs are acceptable: a
// missing driver or a dependency cycle drops the affected configs, logged,
// without failing the whole build.
func Build(reg *registry.Registry, configs []config.Component) (*ResourceMap, error) {
	reg.MarkBuildStarted()
	rm := newResourceMap()
	buildInto(reg, rm, configs)
	return rm, nil
}

// buildInto runs the §4.2 algorithm over configs, inserting newly
// constructed resources into the already-live rm. Build uses it against a
// freshly-created map; Reconfigure uses it against the surviving remainder
// of a previous build, so a resource already in rm by the same name as one
// of configs is never re-visited here (the caller is responsible for
// excluding anything it decided to keep).
func buildInto(reg *registry.Registry, rm *ResourceMap, configs []config.Component) {
	queue := make([]pending, 0, len(configs))
	var boardCfg *config.Component
	for _, cfg := range configs {
		if boardCfg == nil && cfg.Subtype == resource.SubtypeBoard {
			c := cfg
			boardCfg = &c
			continue
		}
		queue = append(queue, pending{cfg: cfg})
	}

	var boardKey *resource.Key
	// A board may already survive from a previous buildInto call
	// (Robot.Reconfigure keeps an unchanged board across a reconfigure); if
	// so it is still the implicit dependency every other component below
	// picks up, and nothing new needs constructing.
	for _, name := range rm.Names() {
		if name.Subtype == resource.SubtypeBoard {
			k := resource.Key{Subtype: name.Subtype, Name: name.Name}
			boardKey = &k
			break
		}
	}
	if boardKey == nil && boardCfg != nil {
		v, err := construct(reg, rm, *boardCfg, nil)
		if err != nil {
			Logger.Error(err, "failed to construct board, continuing without it", "name", boardCfg.Name)
		} else {
			if err := rm.insert(boardCfg.ResourceName(), v); err != nil {
				Logger.Error(err, "duplicate board resource name", "name", boardCfg.Name)
			} else {
				k := boardCfg.DependencyKey()
				boardKey = &k
			}
		}
	}

	n := len(queue)
	maxPasses := 2 * n
	for pass := 0; pass < maxPasses && len(queue) > 0; pass++ {
		item := queue[0]
		queue = queue[1:]

		ok, err := tryConstruct(reg, rm, item.cfg, boardKey)
		if err != nil {
			// Configuration or dependency error: log and drop, never retry
			// this boot (§4.2, §7).
			Logger.Error(err, "dropping component", "name", item.cfg.Name, "subtype", item.cfg.Subtype)
			continue
		}
		if !ok {
			// A declared dependency is still missing; rotate to the tail.
			queue = append(queue, item)
			continue
		}
	}

	for _, item := range queue {
		Logger.Info("component unresolved after maximum passes, dropping",
			"name", item.cfg.Name, "subtype", item.cfg.Subtype)
	}
}

// tryConstruct attempts one visit of cfg. It returns (false, nil) when a
// dependency is still missing (caller should rotate it to the tail), and
// (true, err) once it has either succeeded or permanently failed.
func tryConstruct(reg *registry.Registry, rm *ResourceMap, cfg config.Component, boardKey *resource.Key) (bool, error) {
	bareModel, err := cfg.BareModel()
	if err != nil {
		return true, err
	}

	getter, err := reg.DependencyGetterFor(cfg.Subtype, bareModel)
	var depKeys []resource.Key
	switch err {
	case nil:
		depKeys, err = getter(cfg)
		if err != nil {
			return true, fmt.Errorf("dependency getter for %s: %w", cfg.Name, err)
		}
	case registry.ErrNotFound:
		// No dependency getter registered: this constructor declares no
		// dependencies (§4.1 invariant).
	default:
		return true, err
	}

	deps := make(registry.Deps, len(depKeys)+1)
	for _, dk := range depKeys {
		v, _, found := rm.ByNameAndSubtype(dk.Subtype, dk.Name)
		if !found {
			return false, nil
		}
		deps[dk] = v
	}
	// The board, if one was constructed, is implicitly available to every
	// other component as a dependency (§4.2: "construct it eagerly, the
	// board is typically a dependency of everything else").
	if boardKey != nil {
		if bv, ok := rm.ByNameAndSubtypeKey(*boardKey); ok {
			deps[*boardKey] = bv
		}
	}

	v, err := construct(reg, rm, cfg, deps)
	if err != nil {
		return true, err
	}
	if err := rm.insert(cfg.ResourceName(), v); err != nil {
		return true, err
	}
	return true, nil
}

// ByNameAndSubtypeKey is a convenience wrapper over ByNameAndSubtype taking
// a resource.Key.
func (m *ResourceMap) ByNameAndSubtypeKey(k resource.Key) (resource.Variant, bool) {
	v, _, ok := m.ByNameAndSubtype(k.Subtype, k.Name)
	return v, ok
}

func construct(reg *registry.Registry, rm *ResourceMap, cfg config.Component, deps registry.Deps) (resource.Variant, error) {
	bareModel, err := cfg.BareModel()
	if err != nil {
		return resource.Variant{}, err
	}
	ctor, err := reg.ConstructorFor(cfg.Subtype, bareModel)
	if err != nil {
		return resource.Variant{}, fmt.Errorf("no constructor for %s:%s: %w", cfg.Subtype, bareModel, err)
	}
	impl, err := ctor(deps, cfg)
	if err != nil {
		return resource.Variant{}, fmt.Errorf("constructor for %s failed: %w", cfg.Name, err)
	}
	v, ok := resource.VariantFor(cfg.Subtype, impl)
	if !ok {
		return resource.Variant{}, fmt.Errorf("constructed instance for %s does not satisfy subtype %s", cfg.Name, cfg.Subtype)
	}
	return v, nil
}

// Robot is the live, queryable handle over a built ResourceMap, plus
// reverse-order teardown and reconfiguration.
type Robot struct {
	rm      *ResourceMap
	reg     *registry.Registry
	configs map[resource.Name]config.Component
}

// New builds a Robot from configs using reg.
func New(reg *registry.Registry, configs []config.Component) (*Robot, error) {
	rm, err := Build(reg, configs)
	if err != nil {
		return nil, err
	}
	return &Robot{rm: rm, reg: reg, configs: configsByName(configs)}, nil
}

func configsByName(configs []config.Component) map[resource.Name]config.Component {
	out := make(map[resource.Name]config.Component, len(configs))
	for _, cfg := range configs {
		out[cfg.ResourceName()] = cfg
	}
	return out
}

// ResourceByName looks a resource up by (subtype, name), as the RPC
// dispatcher does.
func (r *Robot) ResourceByName(subtype resource.Subtype, name string) (resource.Variant, bool) {
	v, _, ok := r.rm.ByNameAndSubtype(subtype, name)
	return v, ok
}

// ResourceNames returns every live resource name.
func (r *Robot) ResourceNames() []resource.Name {
	return r.rm.Names()
}

// Shutdown destroys resource instances in reverse construction order,
// letting each driver issue a final hardware command (§3 Lifecycles).
func (r *Robot) Shutdown(ctx context.Context) {
	for i := len(r.rm.order) - 1; i >= 0; i-- {
		name := r.rm.order[i]
		v := r.rm.entries[name]
		if closeable, ok := v.Closeable(); ok {
			if err := closeable.Close(ctx); err != nil {
				Logger.Error(err, "error closing resource during shutdown", "name", name)
			}
		}
	}
}

// Reconfigure replaces the live resource set with the one described by
// configs. It is original to this implementation: spec.md §5 requires
// quiescing the session manager before a reconfiguration mutates the
// resource map, so Reconfigure drains sessions first (sessions may be nil
// in tests that build a Robot without a session.Manager, in which case
// nothing is drained).
//
// Resources whose config is byte-for-byte unchanged (reflect.DeepEqual)
// are left running untouched. Everything else — changed config, or a
// resource whose config was dropped from configs entirely — is torn down
// in reverse construction order, exactly as Shutdown tears down the whole
// map, then the graph builder (buildInto) runs again over whatever is new
// or changed, picking up the surviving resources (notably an unchanged
// board) as dependencies the same way a fresh Build would.
func (r *Robot) Reconfigure(ctx context.Context, sessions *session.Manager, configs []config.Component) error {
	if sessions != nil {
		sessions.Drain(ctx)
	}

	next := configsByName(configs)

	survive := make(map[resource.Name]bool, len(r.rm.order))
	for name, cfg := range next {
		if old, ok := r.configs[name]; ok && reflect.DeepEqual(old, cfg) {
			survive[name] = true
		}
	}

	var remainingOrder []resource.Name
	for i := len(r.rm.order) - 1; i >= 0; i-- {
		name := r.rm.order[i]
		if survive[name] {
			continue
		}
		v := r.rm.entries[name]
		if closeable, ok := v.Closeable(); ok {
			if err := closeable.Close(ctx); err != nil {
				Logger.Error(err, "error closing resource during reconfigure", "name", name)
			}
		}
		delete(r.rm.entries, name)
	}
	for _, name := range r.rm.order {
		if survive[name] {
			remainingOrder = append(remainingOrder, name)
		}
	}
	r.rm.order = remainingOrder

	var toBuild []config.Component
	for name, cfg := range next {
		if !survive[name] {
			toBuild = append(toBuild, cfg)
		}
	}

	r.reg.MarkBuildStarted()
	buildInto(r.reg, r.rm, toBuild)

	r.configs = next
	return nil
}

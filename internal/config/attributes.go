package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Attributes is the recursive enum {null, number, bool, string, list,
// struct} described in §3, represented as a generic map so it round-trips
// through both the cloud manifest decoder and a driver's own typed config
// struct via Decode.
type Attributes map[string]interface{}

// Decode unmarshals the named attribute (or the whole map, if key is "")
// into out using mapstructure, the same pattern
// _examples/bittoy-rule/types/options.go and the SDP config blocks in
// _examples/SilvaMendes-go-rtpengine use for their own `mapstructure`
// struct tags.
func (a Attributes) Decode(key string, out interface{}) error {
	var input interface{} = map[string]interface{}(a)
	if key != "" {
		v, ok := a[key]
		if !ok {
			return fmt.Errorf("attribute %q not present", key)
		}
		input = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Float64 returns a numeric attribute, validating it is strictly positive
// when positive is true (used for frequency_hz per §6).
func (a Attributes) Float64(key string, positive bool) (float64, error) {
	raw, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("attribute %q not present", key)
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, fmt.Errorf("attribute %q is not numeric: %T", key, raw)
	}
	if positive && f <= 0 {
		return 0, fmt.Errorf("attribute %q must be > 0, got %v", key, f)
	}
	return f, nil
}

// Pins decodes the "pins" attribute (§6), accepting either a bare list of
// pin numbers or a struct of named pin sub-keys flattened to a map.
func (a Attributes) Pins() ([]int, map[string]int, error) {
	raw, ok := a["pins"]
	if !ok {
		return nil, nil, nil
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, nil, fmt.Errorf("pins: %w", err)
			}
			out = append(out, n)
		}
		return out, nil, nil
	case map[string]interface{}:
		out := make(map[string]int, len(v))
		for k, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, nil, fmt.Errorf("pins.%s: %w", k, err)
			}
			out[k] = n
		}
		return nil, out, nil
	default:
		return nil, nil, fmt.Errorf("pins: unsupported shape %T", raw)
	}
}

// I2CBus returns the "i2c_bus" attribute.
func (a Attributes) I2CBus() (string, bool) {
	raw, ok := a["i2c_bus"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

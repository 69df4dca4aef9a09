package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// converter maps a raw source value into the wrapper's type. Sources such
// as env and file yield []byte or string, while tests may set typed values.
type converter[T any] func(raw interface{}) (T, error)

// ValueConfig is a utility wrapper for a typed config
type ValueConfig[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newValueConfig[T any](override config.Config, defaultValue T, convert converter[T]) *ValueConfig[T] {
	return &ValueConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *ValueConfig[T]) GetSafe(ctx context.Context) (T, error) {
	override, err := c.override.Get(ctx)
	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()
	if err == config.ErrNoValue {
		c.stateMu.Lock()
		c.lastValue = c.defaultValue
		c.stateMu.Unlock()
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	newValue, err := c.convert(override)
	if err != nil {
		return lastValue, err
	}

	c.stateMu.Lock()
	c.lastValue = newValue
	c.stateMu.Unlock()
	return newValue, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *ValueConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *ValueConfig[T]) Shutdown() {
	c.override.Shutdown()
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return newValueConfig(override, defaultValue, func(raw interface{}) (bool, error) {
		switch typed := raw.(type) {
		case bool:
			return typed, nil
		}

		s, ok := asString(raw)
		if !ok {
			return false, ErrUnsuportedConversion
		}
		return strconv.ParseBool(s)
	})
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return newValueConfig(override, defaultValue, func(raw interface{}) (uint64, error) {
		switch typed := raw.(type) {
		case uint64:
			return typed, nil
		case int:
			if typed < 0 {
				return 0, errors.Errorf("config: negative value %d", typed)
			}
			return uint64(typed), nil
		case int64:
			if typed < 0 {
				return 0, errors.Errorf("config: negative value %d", typed)
			}
			return uint64(typed), nil
		case float64:
			if typed < 0 || typed != float64(uint64(typed)) {
				return 0, errors.Errorf("config: invalid uint64 value %v", typed)
			}
			return uint64(typed), nil
		}

		s, ok := asString(raw)
		if !ok {
			return 0, ErrUnsuportedConversion
		}
		return strconv.ParseUint(s, 10, 64)
	})
}

// NewStringConfig returns a new string config utility wrapper
func NewStringConfig(override config.Config, defaultValue string) config.String {
	return newValueConfig(override, defaultValue, func(raw interface{}) (string, error) {
		s, ok := asString(raw)
		if !ok {
			return "", ErrUnsuportedConversion
		}
		return s, nil
	})
}

// NewDurationConfig returns a new duration config utility wrapper
func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return newValueConfig(override, defaultValue, func(raw interface{}) (time.Duration, error) {
		switch typed := raw.(type) {
		case time.Duration:
			return typed, nil
		}

		s, ok := asString(raw)
		if !ok {
			return 0, ErrUnsuportedConversion
		}
		return time.ParseDuration(s)
	})
}

func asString(raw interface{}) (string, bool) {
	switch typed := raw.(type) {
	case []byte:
		return string(typed), true
	case string:
		return typed, true
	default:
		return "", false
	}
}

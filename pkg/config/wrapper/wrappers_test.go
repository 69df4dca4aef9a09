package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/memory"
)

func TestBoolConfig(t *testing.T) {
	defaultValue := true
	overridenValue := false
	mock := memory.NewConfig(nil)
	wrapper := NewBoolConfig(mock, defaultValue)

	testWrapper(t, mock, wrapper, defaultValue, overridenValue)

	mock.SetValue([]byte("false"))
	assert.False(t, wrapper.Get(context.Background()))
	mock.SetValue("true")
	assert.True(t, wrapper.Get(context.Background()))

	// The last observed config value is returned on a parse failure
	mock.SetValue([]byte("maybe"))
	val, err := wrapper.GetSafe(context.Background())
	assert.Error(t, err)
	assert.True(t, val)
}

func TestUint64Config(t *testing.T) {
	defaultValue := uint64(8)
	overridenValue := uint64(1_400_000)
	mock := memory.NewConfig(nil)
	wrapper := NewUint64Config(mock, defaultValue)

	testWrapper(t, mock, wrapper, defaultValue, overridenValue)

	mock.SetValue([]byte("10000"))
	assert.EqualValues(t, 10000, wrapper.Get(context.Background()))
	mock.SetValue(32)
	assert.EqualValues(t, 32, wrapper.Get(context.Background()))
	mock.SetValue(float64(64))
	assert.EqualValues(t, 64, wrapper.Get(context.Background()))

	for _, invalid := range []interface{}{-1, int64(-1), float64(1.5), []byte("-1"), "abc"} {
		mock.SetValue(invalid)
		val, err := wrapper.GetSafe(context.Background())
		assert.Error(t, err)
		assert.EqualValues(t, 64, val)
	}
}

func TestStringConfig(t *testing.T) {
	defaultValue := "confirmed"
	overridenValue := "finalized"
	mock := memory.NewConfig(nil)
	wrapper := NewStringConfig(mock, defaultValue)

	testWrapper(t, mock, wrapper, defaultValue, overridenValue)

	mock.SetValue([]byte("processed"))
	assert.Equal(t, "processed", wrapper.Get(context.Background()))
}

func TestDurationConfig(t *testing.T) {
	defaultValue := 30 * time.Second
	overridenValue := time.Minute
	mock := memory.NewConfig(nil)
	wrapper := NewDurationConfig(mock, defaultValue)

	testWrapper(t, mock, wrapper, defaultValue, overridenValue)

	mock.SetValue([]byte("1500ms"))
	assert.Equal(t, 1500*time.Millisecond, wrapper.Get(context.Background()))
}

func testWrapper[T any](t *testing.T, mock *memory.Config, wrapper config.Value[T], defaultValue, overridenValue T) {
	// Return the default value when no override is set
	val, err := wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// The overriden value is returned when set
	mock.SetValue(overridenValue)
	val, err = wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(context.Background()))

	// The last observed config value is returned on error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(context.Background())
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(context.Background()))

	// The default value is returned when the override no longer has a value
	mock.StopInducingErrors()
	mock.ClearValue()
	val, err = wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// Return an unsupported source value type
	mock.SetValue(struct{}{})
	val, err = wrapper.GetSafe(context.Background())
	assert.Equal(t, err, ErrUnsuportedConversion)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))
}

package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestCountUnique_UserAgentCollapsesDevices(t *testing.T) {
	devices := []Device{
		{DeviceID: "a", UserID: ptr(int64(1)), UserAgent: ptr("Firefox")},
		{DeviceID: "b", UserID: ptr(int64(1)), UserAgent: ptr(" firefox ")},
	}
	assert.Equal(t, 1, CountUnique(devices))
}

func TestCountUnique_UserWithoutAgentKeysOnDevice(t *testing.T) {
	devices := []Device{
		{DeviceID: "a", UserID: ptr(int64(1))},
		{DeviceID: "b", UserID: ptr(int64(1))},
	}
	assert.Equal(t, 2, CountUnique(devices))
}

func TestCountUnique_AnonymousDevicesCountSeparately(t *testing.T) {
	devices := []Device{
		{DeviceID: "a"},
		{DeviceID: "b", UserAgent: ptr("Firefox")},
		{DeviceID: "a"},
	}
	assert.Equal(t, 2, CountUnique(devices))
}

func TestCountUnique_MixedParties(t *testing.T) {
	devices := []Device{
		{DeviceID: "a", UserID: ptr(int64(1)), UserAgent: ptr("Firefox")},
		{DeviceID: "b", UserID: ptr(int64(2)), UserAgent: ptr("Firefox")},
		{DeviceID: "c"},
	}
	assert.Equal(t, 3, CountUnique(devices))
}

func TestClampWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, ClampWindow(0))
	assert.Equal(t, DefaultWindow, ClampWindow(-time.Minute))
	assert.Equal(t, MinWindow, ClampWindow(5*time.Second))
	assert.Equal(t, 10*time.Minute, ClampWindow(10*time.Minute))
}

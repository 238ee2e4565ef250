package audioout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audioout "github.com/Lundis/go-audioout"
	"github.com/Lundis/go-audioout/server"
)

func freshRegistry(t *testing.T) {
	t.Helper()
	audioout.Teardown()
	audioout.Init()
	t.Cleanup(audioout.Teardown)
}

func TestRegistryNotInitialized(t *testing.T) {
	audioout.Teardown()

	err := audioout.RegisterDriver(&server.MockDriver{DriverName: "mock"})
	assert.ErrorContains(t, err, "not initialized")
	assert.ErrorContains(t, audioout.SetDefaultSampleRate(44100), "not initialized")
	assert.ErrorContains(t, audioout.FromEnv(), "not initialized")
	_, err = audioout.Open("mock", nil, audioout.DeviceSpecs{}, 64)
	assert.ErrorContains(t, err, "not initialized")
}

func TestRegisterDriverDuplicate(t *testing.T) {
	freshRegistry(t)

	require.NoError(t, audioout.RegisterDriver(&server.MockDriver{DriverName: "mock"}))
	err := audioout.RegisterDriver(&server.MockDriver{DriverName: "mock"})
	assert.ErrorContains(t, err, "already registered")
}

func TestDefaultDriverSelection(t *testing.T) {
	freshRegistry(t)

	low := &server.MockDriver{DriverName: "low", DriverPriority: 50}
	high := &server.MockDriver{DriverName: "high", DriverPriority: 100}
	offline := &server.MockDriver{DriverName: "offline", DriverPriority: 200, Unavailable: true}
	require.NoError(t, audioout.RegisterDriver(low))
	require.NoError(t, audioout.RegisterDriver(high))
	require.NoError(t, audioout.RegisterDriver(offline))

	d, err := audioout.Open("", nil, audioout.DeviceSpecs{}, 64)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, high.LastConn(), "highest available priority must win")
	assert.Nil(t, low.LastConn())
	assert.Nil(t, offline.LastConn(), "unavailable drivers must be skipped")
}

func TestOpenUnknownDriver(t *testing.T) {
	freshRegistry(t)

	_, err := audioout.Open("does-not-exist", nil, audioout.DeviceSpecs{}, 64)
	require.ErrorIs(t, err, audioout.ErrConnection)
}

func TestConfigLockedAfterOpen(t *testing.T) {
	freshRegistry(t)

	drv := &server.MockDriver{DriverName: "mock", DriverPriority: 1000}
	require.NoError(t, audioout.RegisterDriver(drv))
	require.NoError(t, audioout.SetDefaultSampleRate(22050))
	require.NoError(t, audioout.SetDefaultChannelCount(2))
	require.NoError(t, audioout.SetDisplayName("registry test"))

	d, err := audioout.Open("mock", nil, audioout.DeviceSpecs{}, 64)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 22050, d.Specs().SampleRate)
	assert.ErrorContains(t, audioout.SetDefaultSampleRate(48000), "locked")
	assert.ErrorContains(t, audioout.SetDefaultBufferFrames(1024), "locked")
	assert.ErrorContains(t, audioout.FromEnv(), "locked")
}

func TestFromEnv(t *testing.T) {
	freshRegistry(t)

	drv := &server.MockDriver{DriverName: "mock", DriverPriority: 1000}
	require.NoError(t, audioout.RegisterDriver(drv))

	t.Setenv("AUDIOOUT_DEVICE", "mock")
	t.Setenv("AUDIOOUT_SAMPLE_RATE", "8000")
	t.Setenv("AUDIOOUT_CHANNELS", "2")
	require.NoError(t, audioout.FromEnv())

	// The empty name resolves to the device named in the environment.
	d, err := audioout.Open("", nil, audioout.DeviceSpecs{}, 64)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, drv.LastConn())
	assert.Equal(t, 8000, d.Specs().SampleRate)
	assert.Equal(t, 2, d.Specs().ChannelCount)
}

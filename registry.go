package audioout

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"

	"github.com/Lundis/go-audioout/server"
)

var (
	errNotInitialized = errors.New("audioout: not initialized, call Init first")
	errConfigLocked   = errors.New("audioout: configuration is locked once a device has been opened")
)

// registry is the process-wide device factory table. It has an explicit
// lifecycle: Init registers the built-in drivers, Teardown clears
// everything. Defaults can be adjusted between Init and the first Open.
var registry struct {
	mu           sync.Mutex
	initialized  bool
	opened       bool
	drivers      map[string]server.Driver
	preferred    string
	defaults     DeviceSpecs
	bufferFrames int
	displayName  string
}

// Init registers the built-in drivers and the default device configuration.
// Call it once during application startup, and Teardown on shutdown. Calling
// Init twice is a no-op.
func Init() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.initialized {
		return
	}
	registry.drivers = make(map[string]server.Driver)
	for _, d := range server.Builtin() {
		registry.drivers[d.Name()] = d
	}
	registry.preferred = ""
	registry.defaults = DeviceSpecs{
		SampleRate:   DefaultSampleRate,
		ChannelCount: DefaultChannelCount,
		Format:       DefaultFormat,
	}
	registry.bufferFrames = DefaultBufferFrames
	registry.displayName = "go-audioout"
	registry.initialized = true
}

// Teardown clears the registry. Open devices must be closed first.
func Teardown() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.initialized = false
	registry.opened = false
	registry.drivers = nil
}

// RegisterDriver adds a named device factory. The priority it reports
// orders default-device selection; higher wins.
func RegisterDriver(d server.Driver) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if !registry.initialized {
		return errNotInitialized
	}
	if _, dup := registry.drivers[d.Name()]; dup {
		return fmt.Errorf("audioout: driver %q already registered", d.Name())
	}
	registry.drivers[d.Name()] = d
	return nil
}

// SetDefaultSampleRate changes the default sample rate. Like all setters it
// fails after the first device has been opened.
func SetDefaultSampleRate(rate int) error {
	return setDefault(func() { registry.defaults.SampleRate = rate })
}

func SetDefaultChannelCount(channels int) error {
	return setDefault(func() { registry.defaults.ChannelCount = channels })
}

func SetDefaultFormat(f Format) error {
	return setDefault(func() { registry.defaults.Format = f })
}

func SetDefaultBufferFrames(frames int) error {
	return setDefault(func() { registry.bufferFrames = frames })
}

// SetDisplayName changes the application name shown by the audio server.
func SetDisplayName(name string) error {
	return setDefault(func() { registry.displayName = name })
}

func setDefault(apply func()) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if !registry.initialized {
		return errNotInitialized
	}
	if registry.opened {
		return errConfigLocked
	}
	apply()
	return nil
}

// envOverrides mirror the setters for containerized and headless setups.
type envOverrides struct {
	Device       string `env:"AUDIOOUT_DEVICE"`
	SampleRate   int    `env:"AUDIOOUT_SAMPLE_RATE"`
	Channels     int    `env:"AUDIOOUT_CHANNELS"`
	BufferFrames int    `env:"AUDIOOUT_BUFFER_FRAMES"`
}

// FromEnv applies AUDIOOUT_* environment overrides on top of the defaults.
func FromEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("audioout: %w", err)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if !registry.initialized {
		return errNotInitialized
	}
	if registry.opened {
		return errConfigLocked
	}
	if o.Device != "" {
		registry.preferred = o.Device
	}
	if o.SampleRate > 0 {
		registry.defaults.SampleRate = o.SampleRate
	}
	if o.Channels > 0 {
		registry.defaults.ChannelCount = o.Channels
	}
	if o.BufferFrames > 0 {
		registry.bufferFrames = o.BufferFrames
	}
	return nil
}

type openParams struct {
	driver       server.Driver
	specs        DeviceSpecs
	bufferFrames int
	displayName  string
}

func openConfig(name string) (openParams, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if !registry.initialized {
		return openParams{}, errNotInitialized
	}
	if name == "" {
		name = registry.preferred
	}
	var drv server.Driver
	if name != "" {
		drv = registry.drivers[name]
		if drv == nil {
			return openParams{}, fmt.Errorf("%w: no driver named %q", ErrConnection, name)
		}
	} else {
		drv = defaultDriverLocked()
		if drv == nil {
			return openParams{}, fmt.Errorf("%w: no available driver", ErrConnection)
		}
		log.Debug("audioout: driver selected", "driver", drv.Name(), "priority", drv.Priority())
	}
	return openParams{
		driver:       drv,
		specs:        registry.defaults,
		bufferFrames: registry.bufferFrames,
		displayName:  registry.displayName,
	}, nil
}

func defaultDriverLocked() server.Driver {
	var best server.Driver
	for _, d := range registry.drivers {
		if !d.Available() {
			continue
		}
		if best == nil || d.Priority() > best.Priority() {
			best = d
		}
	}
	return best
}

// markOpened locks the configuration; called after a successful Open.
func markOpened() {
	registry.mu.Lock()
	registry.opened = true
	registry.mu.Unlock()
}

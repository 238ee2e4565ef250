package mixer

// Bus groups tracks for shared volume and muting, e.g. music vs sound
// effects.
type Bus int

const (
	BusDefault Bus = iota
	BusMusic
	BusAmbience
	BusSfx
	BusUI
	BusDialog
	// BusLast is for when you want to define additional buses yourself.
	BusLast
)

type busSettings struct {
	volume float32
	muted  bool
}

// SetBusVolume scales every track on the bus.
func (m *Mixer) SetBusVolume(b Bus, volume float32) {
	m.m.Lock()
	s := m.busLocked(b)
	s.volume = volume
	m.buses[b] = s
	m.m.Unlock()
}

// MuteBus silences the bus without touching track state.
func (m *Mixer) MuteBus(b Bus, muted bool) {
	m.m.Lock()
	s := m.busLocked(b)
	s.muted = muted
	m.buses[b] = s
	m.m.Unlock()
}

// busGain returns the bus volume, 0 when muted.
func (m *Mixer) busGain(b Bus) float32 {
	m.m.Lock()
	s := m.busLocked(b)
	m.m.Unlock()
	if s.muted {
		return 0
	}
	return s.volume
}

func (m *Mixer) busLocked(b Bus) busSettings {
	if s, ok := m.buses[b]; ok {
		return s
	}
	return busSettings{volume: 1}
}

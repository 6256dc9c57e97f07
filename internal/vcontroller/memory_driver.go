package vcontroller

import "sync"

// MemoryDriver is a software-only Driver: it tracks press/release/axis
// state without talking to any real device. It is the default backend
// for installations with no hardware driver wired, and what the test
// suites across this module drive against.
type MemoryDriver struct {
	mu      sync.Mutex
	min     int
	max     int
	opened  map[int]bool
	deaf    map[int]bool // ports that should report ErrDeviceGone
	history []string
}

// NewMemoryDriver creates a MemoryDriver supporting [min,max] devices.
func NewMemoryDriver(min, max int) *MemoryDriver {
	return &MemoryDriver{
		min:    min,
		max:    max,
		opened: make(map[int]bool),
		deaf:   make(map[int]bool),
	}
}

func (d *MemoryDriver) MinControllers() int { return d.min }
func (d *MemoryDriver) MaxControllers() int { return d.max }

// SimulateDeviceGone marks index so subsequent calls against its
// descriptor fail with ErrDeviceGone, for exercising scheduler/manager
// device-loss handling in tests.
func (d *MemoryDriver) SimulateDeviceGone(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deaf[index] = true
}

type memDescriptor struct {
	driver *MemoryDriver
	index  int
}

func (d *MemoryDriver) OpenDevice(index int) (Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= d.max {
		return nil, ErrDeviceGone
	}
	d.opened[index] = true
	d.history = append(d.history, "open")
	return &memDescriptor{driver: d, index: index}, nil
}

func (d *MemoryDriver) CloseDevice(desc Descriptor) error {
	md := desc.(*memDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.opened, md.index)
	d.history = append(d.history, "close")
	return nil
}

func (d *MemoryDriver) checkLive(md *memDescriptor) error {
	if d.deaf[md.index] {
		return ErrDeviceGone
	}
	return nil
}

func (d *MemoryDriver) Press(desc Descriptor, code string) error {
	md := desc.(*memDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLive(md); err != nil {
		return err
	}
	d.history = append(d.history, "press:"+code)
	return nil
}

func (d *MemoryDriver) Release(desc Descriptor, code string) error {
	md := desc.(*memDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLive(md); err != nil {
		return err
	}
	d.history = append(d.history, "release:"+code)
	return nil
}

func (d *MemoryDriver) SetAxis(desc Descriptor, code string, percent int8) error {
	md := desc.(*memDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLive(md); err != nil {
		return err
	}
	d.history = append(d.history, "axis:"+code)
	return nil
}

func (d *MemoryDriver) Update(desc Descriptor) error {
	md := desc.(*memDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLive(md); err != nil {
		return err
	}
	d.history = append(d.history, "update")
	return nil
}

// History returns every operation performed, in order, for assertions.
func (d *MemoryDriver) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

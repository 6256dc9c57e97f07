package vcontroller

import (
	"fmt"
	"log"
	"sync"
)

// ErrPortOutOfRange is returned by Get for a port outside the acquired
// pool.
type ErrPortOutOfRange struct{ Port, Count int }

func (e *ErrPortOutOfRange) Error() string {
	return fmt.Sprintf("vcontroller: port %d out of range (%d acquired)", e.Port, e.Count)
}

// Manager owns the ordered pool of Controllers. Port arithmetic is
// 0-based internally; callers display port+1 to users.
type Manager struct {
	mu          sync.Mutex
	driver      Driver
	controllers []*Controller
}

// NewManager wraps driver without acquiring anything yet; call Init.
func NewManager(driver Driver) *Manager {
	return &Manager{driver: driver}
}

// Init acquires up to count controllers, clamped to the driver's
// platform maximum (and floored at its minimum, logging a warning if
// count falls outside that range). It never fails outright for
// partially-acquired pools: acquisition failures are logged and
// skipped, and Init returns however many controllers actually came up.
func (m *Manager) Init(count int) (int, error) {
	minCount := m.driver.MinControllers()
	maxCount := m.driver.MaxControllers()

	clamped := count
	if clamped > maxCount {
		log.Printf("vcontroller: requested %d controllers, clamping to platform max %d", count, maxCount)
		clamped = maxCount
	}
	if clamped < minCount {
		log.Printf("vcontroller: requested %d controllers, platform minimum is %d", count, minCount)
		clamped = minCount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	controllers := make([]*Controller, 0, clamped)
	for i := 0; i < clamped; i++ {
		c := newController(i, m.driver)
		if err := c.acquire(); err != nil {
			log.Printf("vcontroller: failed to acquire controller %d: %v", i+1, err)
			continue
		}
		controllers = append(controllers, c)
	}
	m.controllers = controllers

	if len(controllers) == 0 {
		return 0, fmt.Errorf("vcontroller: failed to acquire any controller (requested %d)", count)
	}
	return len(controllers), nil
}

// Get returns the controller at the given 0-based port.
func (m *Manager) Get(port int) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if port < 0 || port >= len(m.controllers) {
		return nil, &ErrPortOutOfRange{Port: port, Count: len(m.controllers)}
	}
	return m.controllers[port], nil
}

// Count returns the number of successfully acquired controllers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Cleanup releases every acquired controller. Errors are logged, not
// returned, since cleanup happens during shutdown.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.controllers {
		if err := c.release(); err != nil {
			log.Printf("vcontroller: error releasing controller %d: %v", c.Index()+1, err)
		}
	}
	m.controllers = nil
}

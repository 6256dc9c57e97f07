package vcontroller

import "sync"

// Controller is one acquired slot in the pool: a Driver descriptor plus
// the press/release/axis state the scheduler mutates and flushes with
// Update. Pressing an already-pressed button is idempotent; releasing
// an unpressed one is a no-op — callers never need to track state
// themselves.
type Controller struct {
	mu       sync.Mutex
	index    int
	driver   Driver
	desc     Descriptor
	acquired bool
	degraded bool

	buttons map[string]bool
	axes    map[string]int8
}

func newController(index int, driver Driver) *Controller {
	return &Controller{
		index:   index,
		driver:  driver,
		buttons: make(map[string]bool),
		axes:    make(map[string]int8),
	}
}

// Index returns the controller's 0-based slot.
func (c *Controller) Index() int { return c.index }

// Degraded reports whether the controller hit ErrDeviceGone and has not
// been reacquired since.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	desc, err := c.driver.OpenDevice(c.index)
	if err != nil {
		return err
	}
	c.desc = desc
	c.acquired = true
	c.degraded = false
	return nil
}

func (c *Controller) release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return ErrNotAcquired
	}
	err := c.driver.CloseDevice(c.desc)
	c.acquired = false
	c.desc = nil
	return err
}

// Press presses button/input code. Idempotent.
func (c *Controller) Press(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return ErrNotAcquired
	}
	if c.buttons[code] {
		return nil
	}
	if err := c.driver.Press(c.desc, code); err != nil {
		c.markDegraded(err)
		return err
	}
	c.buttons[code] = true
	return nil
}

// Release releases button/input code. No-op if not pressed.
func (c *Controller) Release(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return ErrNotAcquired
	}
	if !c.buttons[code] {
		return nil
	}
	if err := c.driver.Release(c.desc, code); err != nil {
		c.markDegraded(err)
		return err
	}
	c.buttons[code] = false
	return nil
}

// SetAxis sets an analog axis to the given signed percent (-100..100).
func (c *Controller) SetAxis(code string, percent int8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return ErrNotAcquired
	}
	if err := c.driver.SetAxis(c.desc, code, percent); err != nil {
		c.markDegraded(err)
		return err
	}
	c.axes[code] = percent
	return nil
}

// Update flushes pending button/axis changes as a single atomic report.
// The scheduler calls this once after a chord's presses and once after
// its releases.
func (c *Controller) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return ErrNotAcquired
	}
	if err := c.driver.Update(c.desc); err != nil {
		c.markDegraded(err)
		return err
	}
	return nil
}

// Reset releases every pressed button and centers every axis, then
// flushes with Update.
func (c *Controller) Reset() error {
	c.mu.Lock()
	pressed := make([]string, 0, len(c.buttons))
	for code, p := range c.buttons {
		if p {
			pressed = append(pressed, code)
		}
	}
	axisCodes := make([]string, 0, len(c.axes))
	for code, v := range c.axes {
		if v != 0 {
			axisCodes = append(axisCodes, code)
		}
	}
	acquired := c.acquired
	desc := c.desc
	c.mu.Unlock()

	if !acquired {
		return ErrNotAcquired
	}
	for _, code := range pressed {
		if err := c.driver.Release(desc, code); err != nil {
			c.mu.Lock()
			c.markDegraded(err)
			c.mu.Unlock()
			return err
		}
		c.mu.Lock()
		c.buttons[code] = false
		c.mu.Unlock()
	}
	for _, code := range axisCodes {
		if err := c.driver.SetAxis(desc, code, 0); err != nil {
			c.mu.Lock()
			c.markDegraded(err)
			c.mu.Unlock()
			return err
		}
		c.mu.Lock()
		c.axes[code] = 0
		c.mu.Unlock()
	}
	if err := c.driver.Update(desc); err != nil {
		c.mu.Lock()
		c.markDegraded(err)
		c.mu.Unlock()
		return err
	}
	return nil
}

// markDegraded flags the controller as degraded whenever a driver call
// fails with ErrDeviceGone. Caller must hold c.mu.
func (c *Controller) markDegraded(err error) {
	if err == ErrDeviceGone {
		c.degraded = true
		c.acquired = false
	}
}

package drc

import "time"

// Timing and version constants of the DRC update protocol.
const (
	// CaffeineMinVersion is the first running version that has a caffeine slot
	CaffeineMinVersion = 0x180a0000
	// CaffeineInvalidSlot invalidates the caffeine slot
	CaffeineInvalidSlot = 0xff

	// DefaultPollInterval is the granularity of every bounded wait
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultEepromTimeout bounds the wait for the config store after a reattach
	DefaultEepromTimeout = 2 * time.Second
	// DefaultAbortTimeout bounds repeated abort requests
	DefaultAbortTimeout = 3 * time.Second
	// DefaultReactivateTimeout bounds the post-activation reattach to active
	DefaultReactivateTimeout = 10 * time.Second
	// DefaultReactivateInterval is the pause between post-activation reattach attempts
	DefaultReactivateInterval = time.Second
)

package instances

import (
	"fmt"

	"github.com/onkernel/devattach/lib/hypervisor"
)

// ValidTransitions defines the state changes this package drives.
// The VMM owns every other transition of the Cloud Hypervisor state machine.
var ValidTransitions = map[State][]State{
	hypervisor.StateCreated: {
		hypervisor.StateRunning, // boot finished, replay queued devices
	},
	hypervisor.StateRunning: {},
}

// canTransition checks if a transition from current state to target state is valid
func canTransition(from, to State) error {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown state: %s", ErrInvalidState, from)
	}

	for _, valid := range allowed {
		if valid == to {
			return nil
		}
	}

	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidState, from, to)
}

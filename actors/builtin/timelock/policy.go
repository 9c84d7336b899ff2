package timelock

import (
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/go-timelock/actors/builtin"
)

// The minimum delay between queuing an action and its earliest execution, for instances
// constructed without an explicit delay.
const DefaultMinDelay = 2 * builtin.EpochsInHour // 240 epochs

// Returns the epoch lying delay epochs after epoch, and false if that epoch is not representable.
// The delay must not be negative.
func epochAfter(epoch, delay abi.ChainEpoch) (abi.ChainEpoch, bool) {
	later := epoch + delay
	if later < epoch {
		return 0, false
	}
	return later, true
}

package host

// Input bits, as pressed this tick. The engine feeds the combined mask
// to the scheduler; input waits test against it, and a wait with a
// zero mask accepts any bit.
const (
	InputConfirm uint8 = 1 << 0
	InputCancel  uint8 = 1 << 1
	InputMenu    uint8 = 1 << 2
	InputUp      uint8 = 1 << 3
	InputDown    uint8 = 1 << 4
	InputLeft    uint8 = 1 << 5
	InputRight   uint8 = 1 << 6
	InputDash    uint8 = 1 << 7
)

// InputMove covers the four directions.
const InputMove = InputUp | InputDown | InputLeft | InputRight

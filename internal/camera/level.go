package camera

import "fmt"

// DisruptionLevel describes how much of the camera lifecycle a configuration
// change disturbs. Levels are bit bundles, not an ordered enum: a change set
// carries the OR of the levels of every field that changed.
type DisruptionLevel uint32

const (
	// LevelNone means the change applies to a streaming camera in place.
	LevelNone DisruptionLevel = 0

	// LevelStop means acquisition must halt before the change applies.
	LevelStop DisruptionLevel = 1 << 0

	// LevelClose means the device handle must be released and reacquired.
	// The stop bit is folded in: closing always implies stopping.
	LevelClose DisruptionLevel = 1<<1 | LevelStop

	// LevelAll marks the initial configuration pass, where every field is
	// treated as changed. It forces a redundant stop/start cycle right
	// after startup, which the controller tolerates.
	LevelAll DisruptionLevel = 0xFFFFFFFF
)

// RequiresStop reports whether the level carries the stop bit.
func (l DisruptionLevel) RequiresStop() bool {
	return l&LevelStop != 0
}

// RequiresClose reports whether the level carries the close bit.
func (l DisruptionLevel) RequiresClose() bool {
	return l&(LevelClose&^LevelStop) != 0
}

func (l DisruptionLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelStop:
		return "stop"
	case LevelClose:
		return "close"
	case LevelAll:
		return "all"
	}
	return fmt.Sprintf("level(%#x)", uint32(l))
}

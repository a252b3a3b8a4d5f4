package logic

// Level is the four-state analog-equivalent output.
type Level string

const (
	LevelOff         Level = "OFF"
	LevelApproaching Level = "APPROACHING"
	LevelOn          Level = "ON"
	LevelSaturated   Level = "SATURATED"
)

// Lines returns the 13K (a) and 10K (b) line states encoding the level.
func (l Level) Lines() (a, b bool) {
	switch l {
	case LevelApproaching:
		return true, false
	case LevelOn:
		return false, true
	case LevelSaturated:
		return true, true
	}
	return false, false
}

// LevelFromLines decodes line states.
func LevelFromLines(a, b bool) Level {
	switch {
	case a && b:
		return LevelSaturated
	case a:
		return LevelApproaching
	case b:
		return LevelOn
	}
	return LevelOff
}

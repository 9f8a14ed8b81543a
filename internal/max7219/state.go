package max7219

import "fmt"

// CommandKind tags a Command.
type CommandKind int

const (
	ClearAll CommandKind = iota
	SetCell
)

// Command is a diff applied to the display state. Applying the same
// command twice has no further effect.
type Command struct {
	Kind CommandKind
	X, Y int
	On   bool
}

// Clear returns a ClearAll command.
func Clear() Command { return Command{Kind: ClearAll} }

// Cell returns a SetCell command.
func Cell(x, y int, on bool) Command {
	return Command{Kind: SetCell, X: x, Y: y, On: on}
}

func (c Command) String() string {
	if c.Kind == ClearAll {
		return "ClearAll"
	}
	return fmt.Sprintf("SetCell(%d,%d,%t)", c.X, c.Y, c.On)
}

// State is the 8x8 bit grid, one bitmask per row (bit x of row y), plus
// a dirty flag telling whether the panel is behind.
type State struct {
	rows  [Size]byte
	dirty bool
}

// NewState returns an all-off state that still owes its first paint.
func NewState() State {
	return State{dirty: true}
}

// SetCell updates one cell. Coordinates outside the grid are ignored.
// The state only turns dirty when the cell actually changes.
func (s *State) SetCell(x, y int, on bool) {
	if x < 0 || y < 0 || x >= Size || y >= Size {
		return
	}
	mask := byte(1) << uint(x)
	row := s.rows[y]
	if on {
		row |= mask
	} else {
		row &^= mask
	}
	if row != s.rows[y] {
		s.rows[y] = row
		s.dirty = true
	}
}

// Clear switches every cell off.
func (s *State) Clear() {
	s.rows = [Size]byte{}
	s.dirty = true
}

// Apply executes a command.
func (s *State) Apply(c Command) {
	switch c.Kind {
	case ClearAll:
		s.Clear()
	case SetCell:
		s.SetCell(c.X, c.Y, c.On)
	}
}

// Cell reports whether the cell is on.
func (s *State) Cell(x, y int) bool {
	if x < 0 || y < 0 || x >= Size || y >= Size {
		return false
	}
	return s.rows[y]&(1<<uint(x)) != 0
}

// Rows returns a copy of the row bitmasks.
func (s *State) Rows() [Size]byte { return s.rows }

// Dirty reports whether a repaint is owed.
func (s *State) Dirty() bool { return s.dirty }

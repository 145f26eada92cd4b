package canvas

// PointerKind distinguishes the phases of a pointer gesture.
type PointerKind int

const (
	PointerPress PointerKind = iota
	PointerMove
	PointerRelease
	PointerCancel
)

// PointerEvent is a single pointer sample in display coordinates.
type PointerEvent struct {
	Kind PointerKind
	Pos  Point
}

// HandlePointer routes a pointer event to the stroke methods. It reports
// whether the event changed the surface; events after Close, and moves or
// releases without a press, are ignored.
func (s *Surface) HandlePointer(ev PointerEvent) bool {
	if !s.Loaded() {
		return false
	}
	switch ev.Kind {
	case PointerPress:
		s.BeginStroke(ev.Pos)
		return true
	case PointerMove:
		if !s.Stroking() {
			return false
		}
		s.ExtendStroke(ev.Pos)
		return true
	case PointerRelease, PointerCancel:
		if !s.Stroking() {
			return false
		}
		if ev.Kind == PointerRelease {
			s.ExtendStroke(ev.Pos)
		}
		s.EndStroke()
		return true
	}
	return false
}

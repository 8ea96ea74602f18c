package engine

// Pointer receives camera gestures decoded from mouse input.
type Pointer interface {
	Rotate(dx, dy float32)
	Pan(dx, dy float32)
	Dolly(steps float32)
}

// scrollState turns wheel ticks into a page-like vertical scroll offset.
type scrollState struct {
	offset     float64
	pageHeight float64
	step       float64
}

// wheel applies a wheel event and returns the new offset. Wheel up
// (positive yoff) scrolls back towards the top of the page.
func (s *scrollState) wheel(yoff float64) float64 {
	s.offset = min(max(s.offset-yoff*s.step, 0), s.pageHeight)
	return s.offset
}

// dragState tracks the cursor between move events of one drag.
type dragState struct {
	lastX, lastY float64
	active       bool
}

// move returns the cursor delta since the previous event of the same drag.
// The first event of a drag only records the position.
func (d *dragState) move(x, y float64, pressed bool) (dx, dy float64, ok bool) {
	if !pressed {
		d.active = false
		return 0, 0, false
	}
	if !d.active {
		d.lastX, d.lastY = x, y
		d.active = true
		return 0, 0, false
	}
	dx, dy = x-d.lastX, y-d.lastY
	d.lastX, d.lastY = x, y
	return dx, dy, true
}

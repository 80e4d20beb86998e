// Package slider tracks the visible window of a horizontally scrolling list
// (course cards, testimonials, calendar months).
package slider

import "batchcal/internal/model"

// Breakpoints maps viewport widths to slides per view:
// width < Small shows 1, width < Medium shows 2, anything wider shows 3.
type Breakpoints struct {
	Small  int `yaml:"small" json:"small"`
	Medium int `yaml:"medium" json:"medium"`
}

var DefaultBreakpoints = Breakpoints{Small: 640, Medium: 1024}

// PerViewForWidth returns how many slides fit at width.
func PerViewForWidth(width int, bp Breakpoints) int {
	if bp.Small <= 0 && bp.Medium <= 0 {
		bp = DefaultBreakpoints
	}
	switch {
	case width < bp.Small:
		return 1
	case width < bp.Medium:
		return 2
	default:
		return 3
	}
}

// Controller holds the current index of a slide window. The index always
// stays in [0, MaxIndex()]. Not safe for concurrent use; each view owns one.
type Controller struct {
	current int
	perView int
	total   int
	bp      Breakpoints
}

// New returns a controller at index 0. perView below 1 is treated as 1 and a
// negative total as 0.
func New(total, perView int) *Controller {
	c := &Controller{bp: DefaultBreakpoints}
	c.total = max(0, total)
	c.perView = max(1, perView)
	return c
}

// NewForWidth derives perView from the viewport width.
func NewForWidth(total, width int, bp Breakpoints) *Controller {
	c := New(total, PerViewForWidth(width, bp))
	c.bp = bp
	return c
}

// MaxIndex is the last index that still shows a full window.
func (c *Controller) MaxIndex() int {
	return max(0, c.total-c.perView)
}

func (c *Controller) Index() int { return c.current }

func (c *Controller) PerView() int { return c.perView }

func (c *Controller) Total() int { return c.total }

// Next advances by one, wrapping to 0 past the end.
func (c *Controller) Next() int {
	if c.current < c.total-c.perView {
		c.current++
	} else {
		c.current = 0
	}
	return c.current
}

// Prev steps back by one, wrapping to MaxIndex before the start.
func (c *Controller) Prev() int {
	if c.current > 0 {
		c.current--
	} else {
		c.current = c.MaxIndex()
	}
	return c.current
}

// GoTo jumps to index, clamped into range.
func (c *Controller) GoTo(index int) int {
	c.current = c.clamp(index)
	return c.current
}

// OffsetPercent is the translate offset for the current index.
func (c *Controller) OffsetPercent() float64 {
	return float64(c.current) * (100 / float64(c.perView))
}

// Resize recomputes perView for a new viewport width and re-clamps the index.
func (c *Controller) Resize(width int) {
	c.perView = PerViewForWidth(width, c.bp)
	c.current = c.clamp(c.current)
}

// SetTotal changes the item count, e.g. after a list reload, and re-clamps.
func (c *Controller) SetTotal(total int) {
	c.total = max(0, total)
	c.current = c.clamp(c.current)
}

// Visible returns the item indices inside the window.
func (c *Controller) Visible() []int {
	end := min(c.total, c.current+c.perView)
	out := make([]int, 0, end-c.current)
	for i := c.current; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func (c *Controller) State() model.SlideWindowState {
	return model.SlideWindowState{
		CurrentIndex:  c.current,
		SlidesPerView: c.perView,
		TotalSlides:   c.total,
		OffsetPercent: c.OffsetPercent(),
	}
}

func (c *Controller) clamp(i int) int {
	return min(max(i, 0), c.MaxIndex())
}

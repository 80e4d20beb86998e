package slider

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextWrapsAtEnd(t *testing.T) {
	c := New(5, 3)
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, 1, c.Next())
	assert.Equal(t, 2, c.Next())
	assert.Equal(t, 0, c.Next())
}

func TestPrevWrapsAtStart(t *testing.T) {
	c := New(5, 3)
	assert.Equal(t, 2, c.Prev())
	assert.Equal(t, 1, c.Prev())
	assert.Equal(t, 0, c.Prev())
}

func TestShortListIsNoop(t *testing.T) {
	c := New(2, 3)
	assert.Equal(t, 0, c.MaxIndex())
	assert.Equal(t, 0, c.Next())
	assert.Equal(t, 0, c.Prev())
	assert.Equal(t, []int{0, 1}, c.Visible())

	empty := New(0, 1)
	assert.Equal(t, 0, empty.Next())
	assert.Empty(t, empty.Visible())
}

func TestGoToClamps(t *testing.T) {
	c := New(10, 3)
	assert.Equal(t, 0, c.GoTo(-4))
	assert.Equal(t, 7, c.GoTo(99))
	assert.Equal(t, 4, c.GoTo(4))
	assert.Equal(t, []int{4, 5, 6}, c.Visible())
}

func TestOffsetPercent(t *testing.T) {
	c := New(10, 2)
	c.GoTo(3)
	assert.InDelta(t, 150.0, c.OffsetPercent(), 1e-9)

	c3 := New(10, 3)
	c3.GoTo(1)
	assert.InDelta(t, 100.0/3, c3.OffsetPercent(), 1e-9)
}

func TestPerViewForWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{0, 1}, {639, 1}, {640, 2}, {1023, 2}, {1024, 3}, {1920, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PerViewForWidth(tt.width, DefaultBreakpoints), "width=%d", tt.width)
	}
	assert.Equal(t, 2, PerViewForWidth(700, Breakpoints{}))
	assert.Equal(t, 1, PerViewForWidth(700, Breakpoints{Small: 800, Medium: 1200}))
}

func TestResizeReclamps(t *testing.T) {
	c := NewForWidth(6, 500, DefaultBreakpoints)
	assert.Equal(t, 1, c.PerView())
	c.GoTo(5)

	c.Resize(1200)
	assert.Equal(t, 3, c.PerView())
	assert.Equal(t, 3, c.Index())

	c.SetTotal(2)
	assert.Equal(t, 0, c.Index())
}

func TestIndexStaysInRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for total := 0; total < 12; total++ {
		for perView := 1; perView <= 3; perView++ {
			c := New(total, perView)
			for i := 0; i < 200; i++ {
				if rnd.Intn(2) == 0 {
					c.Next()
				} else {
					c.Prev()
				}
				assert.GreaterOrEqual(t, c.Index(), 0)
				assert.LessOrEqual(t, c.Index(), max(0, total-perView))
			}
		}
	}
}

func TestState(t *testing.T) {
	c := New(5, 3)
	c.Next()
	s := c.State()
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, 3, s.SlidesPerView)
	assert.Equal(t, 5, s.TotalSlides)
}

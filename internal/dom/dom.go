// Package dom holds the value types shared by everything that talks to the
// page under recording: screen points, element rectangles and selectors.
package dom

import "fmt"

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// Rect is an element's bounding client rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Size is a viewport or frame size in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Target addresses an element: the first match of CSS whose text content
// contains Text (case-insensitive). An empty Text matches any element.
type Target struct {
	CSS  string `yaml:"css"`
	Text string `yaml:"text,omitempty"`
}

// T is shorthand for a CSS-only target.
func T(css string) Target {
	return Target{CSS: css}
}

func (t Target) String() string {
	if t.Text == "" {
		return t.CSS
	}
	return fmt.Sprintf("%s:has-text(%q)", t.CSS, t.Text)
}

// Package cursor draws a synthetic pointer over the page and moves it, together
// with the real mouse, along eased paths.
package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/system"
)

// Surface is the pointer capability of a page. The marker is a fixed,
// click-through element above all content.
type Surface interface {
	// Inject adds the marker unless it is already present.
	Inject(ctx context.Context) error
	// SetVisible fades the marker in or out.
	SetVisible(ctx context.Context, visible bool) error
	// MoveTo positions the marker and dispatches a real mouse move to p.
	MoveTo(ctx context.Context, p dom.Point) error
	// Position reads the marker's current position. ok is false when the
	// marker is not in the document.
	Position(ctx context.Context) (p dom.Point, ok bool, err error)
}

// GlideParams controls how finely and how fast a glide runs.
type GlideParams struct {
	Steps    int
	Duration time.Duration
}

// DefaultGlide is fine enough that single jumps are invisible at 25fps.
var DefaultGlide = GlideParams{Steps: 40, Duration: 500 * time.Millisecond}

func (g GlideParams) Validate() error {
	if g.Steps < 1 {
		return fmt.Errorf("glide steps must be >= 1, got %d", g.Steps)
	}
	if g.Duration < 0 {
		return fmt.Errorf("glide duration must not be negative, got %s", g.Duration)
	}
	return nil
}

// Glider moves a Surface's pointer along eased paths.
type Glider struct {
	Surface Surface
	Sleep   system.SleepFunc
}

func NewGlider(s Surface, sleep system.SleepFunc) *Glider {
	if sleep == nil {
		sleep = system.Sleep
	}
	return &Glider{Surface: s, Sleep: sleep}
}

// GlideTo moves from the marker's current position to target in p.Steps
// moves, pausing p.Duration/p.Steps after each. The start is re-read from the
// page on every call; a missing marker starts the glide at the origin.
func (g *Glider) GlideTo(ctx context.Context, target dom.Point, p GlideParams) error {
	if err := p.Validate(); err != nil {
		return err
	}

	start, ok, err := g.Surface.Position(ctx)
	if err != nil {
		return fmt.Errorf("read pointer position: %w", err)
	}
	if !ok {
		start = dom.Point{}
	}

	delay := p.Duration / time.Duration(p.Steps)
	for _, pt := range Path(start, target, p.Steps) {
		if err := g.Surface.MoveTo(ctx, pt); err != nil {
			return fmt.Errorf("move pointer to %s: %w", pt, err)
		}
		if err := g.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Package annotation shows short-lived labels next to page elements.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/system"
)

// Placement of the label relative to its anchor.
type Placement string

const (
	Above Placement = "above"
	Below Placement = "below"
	Right Placement = "right"
)

const (
	aboveOffset = 40
	belowOffset = 10
	rightOffset = 16

	// FadeDuration matches the CSS opacity transition of the label.
	FadeDuration = 400 * time.Millisecond
	// fadeWait leaves a margin after the transition before removal.
	fadeWait = 450 * time.Millisecond
)

// ErrAnchorMissing is returned by Show when the anchor is not in the page.
var ErrAnchorMissing = errors.New("annotation anchor not found")

// Spec describes one annotation.
type Spec struct {
	Text      string     `yaml:"text"`
	Anchor    dom.Target `yaml:"anchor"`
	Placement Placement  `yaml:"placement"`
	Ms        int        `yaml:"ms"`
}

func (s Spec) Duration() time.Duration {
	return time.Duration(s.Ms) * time.Millisecond
}

func (s Spec) Validate() error {
	if s.Text == "" {
		return errors.New("annotation text is empty")
	}
	if s.Anchor.CSS == "" {
		return errors.New("annotation anchor is empty")
	}
	switch s.Placement {
	case Above, Below, Right:
	default:
		return fmt.Errorf("unknown annotation placement %q", s.Placement)
	}
	if s.Ms < 0 {
		return fmt.Errorf("annotation duration must not be negative, got %dms", s.Ms)
	}
	return nil
}

// Board is the page capability the overlay draws on.
type Board interface {
	// Rect returns the bounding rectangle of the first element matching t.
	Rect(ctx context.Context, t dom.Target) (r dom.Rect, ok bool, err error)
	// Mount adds a transparent label with the given id at p and starts
	// fading it in.
	Mount(ctx context.Context, id, text string, p dom.Point) error
	// FadeOut starts the fade-out transition of the label.
	FadeOut(ctx context.Context, id string) error
	// Remove deletes the label. Removing a missing label is not an error.
	Remove(ctx context.Context, id string) error
}

// Position returns the label's top-left corner for the anchor rectangle.
func Position(r dom.Rect, p Placement) dom.Point {
	switch p {
	case Above:
		return dom.Point{X: r.X, Y: r.Y - aboveOffset}
	case Right:
		return dom.Point{X: r.Right() + rightOffset, Y: r.Y}
	default:
		return dom.Point{X: r.X, Y: r.Bottom() + belowOffset}
	}
}

// Overlay runs the full lifecycle of one annotation at a time.
type Overlay struct {
	Board Board
	Sleep system.SleepFunc
}

func New(b Board, sleep system.SleepFunc) *Overlay {
	if sleep == nil {
		sleep = system.Sleep
	}
	return &Overlay{Board: b, Sleep: sleep}
}

// Show mounts the label, holds it for its duration, fades it out and
// removes it. The label is removed even when ctx is cancelled mid-way.
// If the anchor is missing nothing is mounted and ErrAnchorMissing is returned.
func (o *Overlay) Show(ctx context.Context, s Spec) (err error) {
	if err := s.Validate(); err != nil {
		return err
	}

	rect, ok, err := o.Board.Rect(ctx, s.Anchor)
	if err != nil {
		return fmt.Errorf("locate anchor %s: %w", s.Anchor, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAnchorMissing, s.Anchor)
	}

	id := "__annotation-" + uuid.NewString()
	if err := o.Board.Mount(ctx, id, s.Text, Position(rect, s.Placement)); err != nil {
		// A failed mount may still have inserted the element.
		_ = o.Board.Remove(context.WithoutCancel(ctx), id)
		return fmt.Errorf("mount annotation: %w", err)
	}
	defer func() {
		if rerr := o.Board.Remove(context.WithoutCancel(ctx), id); rerr != nil && err == nil {
			err = fmt.Errorf("remove annotation: %w", rerr)
		}
	}()

	if err := o.Sleep(ctx, s.Duration()); err != nil {
		return err
	}
	if err := o.Board.FadeOut(ctx, id); err != nil {
		return fmt.Errorf("fade annotation: %w", err)
	}
	return o.Sleep(ctx, fadeWait)
}

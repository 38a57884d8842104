// Package director plays a script against a page, one step at a time.
package director

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/ivlev/demo2gif/internal/annotation"
	"github.com/ivlev/demo2gif/internal/cursor"
	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/script"
	"github.com/ivlev/demo2gif/internal/system"
	"github.com/ivlev/demo2gif/internal/theme"
)

var (
	// ErrElementNotFound means a required element was not in the page.
	ErrElementNotFound = errors.New("element not found")
	// ErrTimeout means a wait_for step ran out of time.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrSkipped marks an optional step whose target was absent.
	ErrSkipped = errors.New("step skipped")
)

// Page is everything the director needs from a browser tab.
type Page interface {
	cursor.Surface
	annotation.Board

	Navigate(ctx context.Context, url string) error
	// SetContent replaces the document with html without navigating.
	SetContent(ctx context.Context, html string) error
	Click(ctx context.Context, p dom.Point) error
	// TypeRune sends one character to the focused element.
	TypeRune(ctx context.Context, r rune) error
	// Clear empties an input and notifies the page's listeners.
	Clear(ctx context.Context, t dom.Target) error
	ScrollBy(ctx context.Context, dy float64) error
	ScrollTo(ctx context.Context, y float64) error
}

// State of a run.
type State int

const (
	Idle State = iota
	Running
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tune pacing and failure policy.
type Options struct {
	BaseURL  string
	Viewport dom.Size
	Glide    cursor.GlideParams
	// Settle is the pause between arriving on an element and clicking it.
	Settle    time.Duration
	CharDelay time.Duration
	// WaitTimeout bounds wait_for steps; WaitPoll is the polling interval.
	WaitTimeout time.Duration
	WaitPoll    time.Duration
	// Strict turns soft-skips into failures.
	Strict bool
	Sleep  system.SleepFunc
	Logf   func(format string, args ...any)
}

// DefaultOptions returns the pacing used for the published recording.
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:     baseURL,
		Viewport:    dom.Size{Width: 1280, Height: 800},
		Glide:       cursor.DefaultGlide,
		Settle:      150 * time.Millisecond,
		CharDelay:   70 * time.Millisecond,
		WaitTimeout: 30 * time.Second,
		WaitPoll:    100 * time.Millisecond,
	}
}

// Skip records a soft-skipped step.
type Skip struct {
	Index  int
	Step   script.Step
	Reason error
}

// Report summarises a run.
type Report struct {
	Steps   int
	Skipped []Skip
	Elapsed time.Duration
}

// Director drives one page through one script. It is not safe for
// concurrent use; a run is strictly sequential.
type Director struct {
	page    Page
	opts    Options
	base    *url.URL
	glider  *cursor.Glider
	overlay *annotation.Overlay

	state State
	index int
	err   error
}

func New(page Page, opts Options) (*Director, error) {
	if opts.Sleep == nil {
		opts.Sleep = system.Sleep
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if err := opts.Glide.Validate(); err != nil {
		return nil, err
	}
	if opts.WaitPoll <= 0 {
		opts.WaitPoll = 100 * time.Millisecond
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}

	return &Director{
		page:    page,
		opts:    opts,
		base:    base,
		glider:  cursor.NewGlider(page, opts.Sleep),
		overlay: annotation.New(page, opts.Sleep),
	}, nil
}

// State reports the current state, the index of the step being (or last)
// executed and the failure, if any.
func (d *Director) State() (State, int, error) {
	return d.state, d.index, d.err
}

// Run executes every step in order and stops at the first failure.
func (d *Director) Run(ctx context.Context, s *script.Script) (Report, error) {
	if d.state != Idle {
		return Report{}, fmt.Errorf("director already %s", d.state)
	}
	if err := s.Validate(); err != nil {
		d.fail(err)
		return Report{}, err
	}

	start := time.Now()
	rep := Report{}
	d.state = Running

	for i, st := range s.Steps {
		d.index = i
		d.opts.Logf("[>] Step %d/%d: %s", i+1, len(s.Steps), st)

		err := d.exec(ctx, st)
		if errors.Is(err, ErrSkipped) && !d.opts.Strict && ctx.Err() == nil {
			d.opts.Logf("[!] Step %d skipped: %v", i+1, err)
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Step: st, Reason: err})
			rep.Steps++
			continue
		}
		if err != nil {
			err = fmt.Errorf("step %d (%s): %w", i+1, st.Kind, err)
			d.fail(err)
			rep.Elapsed = time.Since(start)
			return rep, err
		}
		rep.Steps++
	}

	d.state = Complete
	rep.Elapsed = time.Since(start)
	return rep, nil
}

func (d *Director) fail(err error) {
	d.state = Failed
	d.err = err
}

func (d *Director) exec(ctx context.Context, st script.Step) error {
	p := d.page
	switch st.Kind {
	case script.Navigate:
		u, err := d.resolve(st.URL)
		if err != nil {
			return err
		}
		return p.Navigate(ctx, u)

	case script.WaitFor:
		_, err := d.waitFor(ctx, *st.Target)
		return err

	case script.TypeInto:
		if err := d.glideClick(ctx, *st.Target); err != nil {
			return err
		}
		for _, r := range st.Text {
			if err := p.TypeRune(ctx, r); err != nil {
				return fmt.Errorf("type %q: %w", r, err)
			}
			if err := d.opts.Sleep(ctx, d.opts.CharDelay); err != nil {
				return err
			}
		}
		return nil

	case script.Click:
		return d.glideClick(ctx, *st.Target)

	case script.Clear:
		if _, err := d.locate(ctx, *st.Target); err != nil {
			return err
		}
		return p.Clear(ctx, *st.Target)

	case script.ScrollTo:
		return d.scrollTo(ctx, st)

	case script.ScrollTop:
		if err := p.ScrollTo(ctx, 0); err != nil {
			return err
		}
		return d.opts.Sleep(ctx, st.Pause())

	case script.Annotate:
		err := d.overlay.Show(ctx, *st.Note)
		if err == nil || ctx.Err() != nil {
			return err
		}
		// Annotations are cosmetic; a missing anchor or a failed draw is
		// never fatal outside strict mode.
		return fmt.Errorf("%w: %w", ErrSkipped, err)

	case script.Sleep:
		return d.opts.Sleep(ctx, st.Pause())

	case script.TitleCard:
		if err := p.SetContent(ctx, theme.Render(*st.Card)); err != nil {
			return fmt.Errorf("show title card: %w", err)
		}
		return d.opts.Sleep(ctx, st.Pause())

	case script.CursorInject:
		return p.Inject(ctx)
	case script.CursorShow:
		return p.SetVisible(ctx, true)
	case script.CursorHide:
		return p.SetVisible(ctx, false)
	}
	return fmt.Errorf("unknown step kind %q", st.Kind)
}

func (d *Director) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return d.base.ResolveReference(u).String(), nil
}

// locate looks the element up afresh; references are never cached because a
// client-side route change replaces the DOM.
func (d *Director) locate(ctx context.Context, t dom.Target) (dom.Rect, error) {
	r, ok, err := d.page.Rect(ctx, t)
	if err != nil {
		return dom.Rect{}, fmt.Errorf("locate %s: %w", t, err)
	}
	if !ok {
		return dom.Rect{}, fmt.Errorf("%w: %s", ErrElementNotFound, t)
	}
	return r, nil
}

func (d *Director) waitFor(ctx context.Context, t dom.Target) (dom.Rect, error) {
	var deadline <-chan time.Time
	if d.opts.WaitTimeout > 0 {
		timer := time.NewTimer(d.opts.WaitTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		r, ok, err := d.page.Rect(ctx, t)
		if err != nil {
			return dom.Rect{}, fmt.Errorf("locate %s: %w", t, err)
		}
		if ok {
			return r, nil
		}
		select {
		case <-deadline:
			return dom.Rect{}, fmt.Errorf("%w: %s after %s", ErrTimeout, t, d.opts.WaitTimeout)
		default:
		}
		if err := d.opts.Sleep(ctx, d.opts.WaitPoll); err != nil {
			return dom.Rect{}, err
		}
	}
}

// glideClick glides to the element's centre, lets the pointer settle and
// clicks wherever the element is after the motion.
func (d *Director) glideClick(ctx context.Context, t dom.Target) error {
	r, err := d.locate(ctx, t)
	if err != nil {
		return err
	}
	if err := d.glider.GlideTo(ctx, r.Center(), d.opts.Glide); err != nil {
		return err
	}
	if err := d.opts.Sleep(ctx, d.opts.Settle); err != nil {
		return err
	}
	r, err = d.locate(ctx, t)
	if err != nil {
		return err
	}
	return d.page.Click(ctx, r.Center())
}

func (d *Director) scrollTo(ctx context.Context, st script.Step) error {
	r, ok, err := d.page.Rect(ctx, *st.Target)
	if err != nil {
		return fmt.Errorf("locate %s: %w", st.Target, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s not on page", ErrSkipped, st.Target)
	}

	x := float64(d.opts.Viewport.Width) / 2
	if err := d.glider.GlideTo(ctx, dom.Point{X: x, Y: r.Y}, d.opts.Glide); err != nil {
		return err
	}
	if err := d.page.ScrollBy(ctx, r.Y-float64(st.Offset)); err != nil {
		return err
	}
	return d.opts.Sleep(ctx, st.Pause())
}

// Package browser implements the page capabilities on top of headless Chrome
// via chromedp and records the tab while it is driven.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/system"
	"github.com/ivlev/demo2gif/internal/theme"
)

// Options configure the browser and its recording.
type Options struct {
	ExecPath string
	Headless bool
	Viewport dom.Size
	// FPS is the capture frame rate.
	FPS    int
	FFmpeg string
	Theme  theme.Tokens
	Logf   func(format string, args ...any)
}

func DefaultOptions() Options {
	return Options{
		Headless: true,
		Viewport: dom.Size{Width: 1280, Height: 800},
		FPS:      25,
		FFmpeg:   "ffmpeg",
		Theme:    theme.Default(),
		Logf:     log.Printf,
	}
}

// Session is one recorded browser tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	rec         *Recorder
	opts        Options

	closeOnce sync.Once
	closeErr  error
}

// Open launches Chrome with a fixed viewport and starts recording into dir.
func Open(ctx context.Context, dir string, opts Options) (*Session, error) {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	w, h := opts.Viewport.Width, opts.Viewport.Height

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(w, h),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(opts.Logf))

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(w), int64(h))); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	rec, err := StartRecorder(tabCtx, dir, opts.Viewport, opts.FPS, opts.FFmpeg, opts.Logf)
	if err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	return &Session{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		rec:         rec,
		opts:        opts,
	}, nil
}

// Close stops the recording and shuts the browser down. Only the first
// call does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		recErr := s.rec.Stop(s.ctx)
		cerr := chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
		if errors.Is(cerr, context.Canceled) {
			cerr = nil
		}

		if n, err := system.ReapChildren("chrom", "headless_shell"); err == nil && n > 0 {
			s.opts.Logf("[!] Killed %d leftover browser processes", n)
		}
		s.closeErr = errors.Join(recErr, cerr)
	})
	return s.closeErr
}

// CapturePath is where the recording is being written.
func (s *Session) CapturePath() string {
	return s.rec.Path
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	// Steps run under the caller's context, but every action needs the
	// tab's executor.
	done := make(chan struct{})
	defer close(done)
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) eval(ctx context.Context, js string, res any) error {
	return s.run(ctx, chromedp.Evaluate(js, res))
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) SetContent(ctx context.Context, html string) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	}))
}

type rectResult struct {
	Found bool `json:"found"`
	dom.Rect
}

func (s *Session) Rect(ctx context.Context, t dom.Target) (dom.Rect, bool, error) {
	var res rectResult
	if err := s.eval(ctx, rectJS(t), &res); err != nil {
		return dom.Rect{}, false, err
	}
	return res.Rect, res.Found, nil
}

func (s *Session) Click(ctx context.Context, p dom.Point) error {
	return s.run(ctx, chromedp.MouseClickXY(p.X, p.Y))
}

func (s *Session) TypeRune(ctx context.Context, r rune) error {
	return s.run(ctx, chromedp.KeyEvent(string(r)))
}

func (s *Session) Clear(ctx context.Context, t dom.Target) error {
	var ok bool
	if err := s.eval(ctx, clearJS(t), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("clear %s: element not found", t)
	}
	return nil
}

func (s *Session) ScrollBy(ctx context.Context, dy float64) error {
	var ok bool
	return s.eval(ctx, scrollByJS(dy), &ok)
}

func (s *Session) ScrollTo(ctx context.Context, y float64) error {
	var ok bool
	return s.eval(ctx, scrollToJS(y), &ok)
}

func (s *Session) Inject(ctx context.Context) error {
	var ok bool
	return s.eval(ctx, injectCursorJS(s.opts.Theme), &ok)
}

func (s *Session) SetVisible(ctx context.Context, visible bool) error {
	var ok bool
	return s.eval(ctx, cursorVisibleJS(visible), &ok)
}

// MoveTo moves the marker and the real mouse together.
func (s *Session) MoveTo(ctx context.Context, p dom.Point) error {
	var ok bool
	return s.run(ctx,
		chromedp.Evaluate(cursorMoveJS(p), &ok),
		input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y),
	)
}

type positionResult struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (s *Session) Position(ctx context.Context) (dom.Point, bool, error) {
	var res positionResult
	if err := s.eval(ctx, cursorPositionJS(), &res); err != nil {
		return dom.Point{}, false, err
	}
	return dom.Point{X: res.X, Y: res.Y}, res.Found, nil
}

func (s *Session) Mount(ctx context.Context, id, text string, p dom.Point) error {
	var ok bool
	return s.eval(ctx, mountLabelJS(s.opts.Theme, id, text, p), &ok)
}

func (s *Session) FadeOut(ctx context.Context, id string) error {
	var ok bool
	return s.eval(ctx, fadeLabelJS(id), &ok)
}

func (s *Session) Remove(ctx context.Context, id string) error {
	var ok bool
	return s.eval(ctx, removeLabelJS(id), &ok)
}

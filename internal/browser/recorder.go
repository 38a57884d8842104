package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/demo2gif/internal/capture"
	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/system"
)

// CaptureEncoder is the ffmpeg encoder the capture file is written with.
const CaptureEncoder = "libvpx"

// Recorder turns Chrome's screencast into a constant frame rate video. Chrome
// only sends frames when the page repaints, so the writer repeats the latest
// frame on every tick.
type Recorder struct {
	Path string

	size dom.Size
	fps  int
	logf func(string, ...any)

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output bytes.Buffer

	frames chan *page.EventScreencastFrame
	mu     sync.Mutex
	latest *image.RGBA
	count  int

	// written counts frames sent to ffmpeg.
	written int

	g      *errgroup.Group
	cancel context.CancelFunc
}

// StartRecorder starts ffmpeg and the screencast of the tab in tabCtx. The
// capture is written to a fresh file in dir.
func StartRecorder(tabCtx context.Context, dir string, size dom.Size, fps int, ffmpeg string, logf func(string, ...any)) (*Recorder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("capture fps must be positive, got %d", fps)
	}
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	r := &Recorder{
		Path:   filepath.Join(dir, "capture-"+uuid.NewString()+capture.Ext),
		size:   size,
		fps:    fps,
		logf:   logf,
		frames: make(chan *page.EventScreencastFrame, 8),
		latest: system.GetFrame(size.Width, size.Height),
	}
	clear(r.latest.Pix)

	r.cmd = exec.Command(ffmpeg, r.ffmpegArgs()...)
	r.cmd.Stdout = &r.output
	r.cmd.Stderr = &r.output
	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	r.stdin = stdin
	if err := r.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		select {
		case r.frames <- e:
		default:
			// Pump is behind: drop the frame but keep Chrome sending.
			go r.ack(tabCtx, e.SessionID)
		}
	})

	gctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.g, gctx = errgroup.WithContext(gctx)
	r.g.Go(func() error { return r.pump(tabCtx, gctx) })
	r.g.Go(func() error { return r.write(gctx) })

	err = chromedp.Run(tabCtx, page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(90).
		WithMaxWidth(int64(size.Width)).
		WithMaxHeight(int64(size.Height)).
		WithEveryNthFrame(1))
	if err != nil {
		r.shutdown()
		return nil, fmt.Errorf("start screencast: %w", err)
	}
	return r, nil
}

// ffmpegArgs reads raw RGBA frames from stdin and encodes VP8 WebM.
func (r *Recorder) ffmpegArgs() []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", r.size.String(),
		"-framerate", fmt.Sprintf("%d", r.fps),
		"-i", "-",
		"-c:v", CaptureEncoder,
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-b:v", "4M",
		"-pix_fmt", "yuv420p",
		r.Path,
	}
}

func (r *Recorder) ack(tabCtx context.Context, id int64) {
	_ = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.ScreencastFrameAck(id).Do(ctx)
	}))
}

func (r *Recorder) pump(tabCtx, ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-r.frames:
			r.ack(tabCtx, e.SessionID)
			if err := r.store(e.Data); err != nil && r.logf != nil {
				r.logf("[!] Skipping screencast frame: %v", err)
			}
		}
	}
}

// store decodes a base64 JPEG frame and scales it to the capture size.
func (r *Recorder) store(data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return err
	}
	src, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	dst := system.GetFrame(r.size.Width, r.size.Height)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	r.mu.Lock()
	old := r.latest
	r.latest = dst
	r.count++
	r.mu.Unlock()

	system.PutFrame(old)
	return nil
}

// write keeps the stream at fps against the wall clock. Ticks lost while a
// write blocks are made up by repeating the latest frame.
func (r *Recorder) write(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()

	start := time.Now()
	warned := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		due := framesDue(time.Since(start), r.fps)
		r.mu.Lock()
		lag := due - r.written
		r.mu.Unlock()
		if lag > r.fps && !warned && r.logf != nil {
			r.logf("[!] Capture encoder is %d frames behind real time, catching up", lag)
			warned = true
		}

		for i := 0; i < lag; i++ {
			if ctx.Err() != nil {
				return nil
			}
			r.mu.Lock()
			err := writeRawRGBA(r.stdin, r.latest)
			if err == nil {
				r.written++
			}
			r.mu.Unlock()
			if err != nil {
				return fmt.Errorf("write raw error: %w", err)
			}
		}
	}
}

// framesDue is the length of a constant-rate stream after elapsed.
func framesDue(elapsed time.Duration, fps int) int {
	return int(elapsed * time.Duration(fps) / time.Second)
}

// Stop ends the screencast, flushes ffmpeg and waits for the capture file
// to be complete.
func (r *Recorder) Stop(tabCtx context.Context) error {
	if err := chromedp.Run(tabCtx, page.StopScreencast()); err != nil && r.logf != nil {
		r.logf("[!] Stop screencast: %v", err)
	}
	err := r.shutdown()
	if r.logf != nil {
		r.logf("[*] Captured %d screencast frames into %s (%d written)", r.Frames(), filepath.Base(r.Path), r.Written())
	}
	return err
}

func (r *Recorder) shutdown() error {
	r.cancel()
	werr := r.g.Wait()
	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return errors.Join(werr, fmt.Errorf("ffmpeg capture error: %v, output: %s", err, strings.TrimSpace(r.output.String())))
	}
	return werr
}

// Frames reports how many screencast frames were received.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Written reports how many frames were sent to ffmpeg.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		c := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(c, c.Bounds(), img, b.Min, xdraw.Src)
		img = c
	}
	_, err := w.Write(img.Pix)
	return err
}

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/demo2gif/internal/config"
	"github.com/ivlev/demo2gif/internal/director"
	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/script"
	"github.com/ivlev/demo2gif/internal/video"
)

// stubPage finds every element and writes a capture file on Close.
type stubPage struct {
	dir      string
	marker   *dom.Point
	navs     []string
	cards    int
	closed   int
	closeErr error
}

func (s *stubPage) Navigate(_ context.Context, url string) error {
	s.navs = append(s.navs, url)
	return nil
}

func (s *stubPage) SetContent(context.Context, string) error {
	s.cards++
	return nil
}

func (s *stubPage) Rect(context.Context, dom.Target) (dom.Rect, bool, error) {
	return dom.Rect{X: 100, Y: 200, Width: 80, Height: 24}, true, nil
}

func (s *stubPage) Click(context.Context, dom.Point) error                 { return nil }
func (s *stubPage) TypeRune(context.Context, rune) error                   { return nil }
func (s *stubPage) Clear(context.Context, dom.Target) error                { return nil }
func (s *stubPage) ScrollBy(context.Context, float64) error                { return nil }
func (s *stubPage) ScrollTo(context.Context, float64) error                { return nil }
func (s *stubPage) SetVisible(context.Context, bool) error                 { return nil }
func (s *stubPage) Mount(context.Context, string, string, dom.Point) error { return nil }
func (s *stubPage) FadeOut(context.Context, string) error                  { return nil }
func (s *stubPage) Remove(context.Context, string) error                   { return nil }

func (s *stubPage) Inject(context.Context) error {
	if s.marker == nil {
		s.marker = &dom.Point{}
	}
	return nil
}

func (s *stubPage) MoveTo(_ context.Context, p dom.Point) error {
	if s.marker != nil {
		*s.marker = p
	}
	return nil
}

func (s *stubPage) Position(context.Context) (dom.Point, bool, error) {
	if s.marker == nil {
		return dom.Point{}, false, nil
	}
	return *s.marker, true, nil
}

func (s *stubPage) Close() error {
	s.closed++
	if err := os.WriteFile(filepath.Join(s.dir, "capture-test.webm"), []byte("webm-bytes"), 0644); err != nil {
		return err
	}
	return s.closeErr
}

type stubTranscoder struct {
	palettes int
	encodes  int
	fail     error
}

func (t *stubTranscoder) GeneratePalette(_ context.Context, _ video.Job, palette string) error {
	t.palettes++
	return os.WriteFile(palette, []byte("png"), 0644)
}

func (t *stubTranscoder) EncodeWithPalette(_ context.Context, _ video.Job, _, out string) error {
	t.encodes++
	if t.fail != nil {
		return t.fail
	}
	return os.WriteFile(out, []byte("GIF89a"), 0644)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	cfg     *config.Config
	page    *stubPage
	tr      *stubTranscoder
	project *DemoProject
	opens   int
}

func newFixture(t *testing.T, output string) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.WorkDir = filepath.Join(root, "raw")
	cfg.OutputPath = filepath.Join(root, "out", output)

	f := &fixture{cfg: &cfg, tr: &stubTranscoder{}}
	open := func(_ context.Context, dir string) (Session, error) {
		f.opens++
		f.page = &stubPage{dir: dir}
		return f.page, nil
	}

	opts := director.DefaultOptions(cfg.BaseURL)
	opts.Sleep = noSleep
	opts.Logf = t.Logf

	f.project = NewDemoProject(f.cfg, open, f.tr)
	f.project.Preflight = nil
	f.project.Director = &opts
	f.project.Logf = t.Logf
	return f
}

func TestRunProducesGIF(t *testing.T) {
	f := newFixture(t, "demo.gif")

	stats, err := f.project.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.opens)
	assert.Equal(t, 1, f.page.closed)
	assert.Equal(t, 1, f.tr.palettes)
	assert.Equal(t, 1, f.tr.encodes)
	assert.Equal(t, len(script.Default().Steps), stats.Steps)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, 2, f.page.cards)
	assert.Equal(t, "http://localhost:9090/", f.page.navs[0])

	data, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))
	assert.Equal(t, "capture-test.webm", filepath.Base(stats.Capture.Path))
}

func TestRunWebmOutputCopiesCapture(t *testing.T) {
	f := newFixture(t, "demo.webm")

	_, err := f.project.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.tr.palettes)
	data, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))
}

func TestRunEncodeFailureLeavesNoOutput(t *testing.T) {
	f := newFixture(t, "demo.gif")
	f.tr.fail = errors.New("encoder exploded")

	_, err := f.project.Run(context.Background())
	require.ErrorIs(t, err, f.tr.fail)

	_, statErr := os.Stat(f.cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCloseErrorFailsRecording(t *testing.T) {
	f := newFixture(t, "demo.gif")
	closeErr := errors.New("recorder did not flush")
	open := f.project.Open
	f.project.Open = func(ctx context.Context, dir string) (Session, error) {
		s, err := open(ctx, dir)
		f.page.closeErr = closeErr
		return s, err
	}

	_, err := f.project.Run(context.Background())
	require.ErrorIs(t, err, closeErr)
	assert.Zero(t, f.tr.encodes)
}

func TestRunPreflightFailureStopsEarly(t *testing.T) {
	f := newFixture(t, "demo.gif")
	f.project.Preflight = func(context.Context) error { return errors.New("no ffmpeg") }

	_, err := f.project.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight")
	assert.Zero(t, f.opens)
}

func TestRunWithScriptFile(t *testing.T) {
	f := newFixture(t, "demo.gif")
	path := filepath.Join(t.TempDir(), "short.yaml")
	require.NoError(t, script.Write(&script.Script{
		Version: "1.0",
		Name:    "short",
		Steps: []script.Step{
			script.NavigateTo("/flags"),
			script.Pause(100),
		},
	}, path))
	f.cfg.ScriptPath = path

	stats, err := f.project.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Steps)
	assert.Equal(t, []string{"http://localhost:9090/flags"}, f.page.navs)
}

func TestRunGenerateScript(t *testing.T) {
	f := newFixture(t, "demo.gif")
	out := filepath.Join(t.TempDir(), "scripts", "default.yaml")
	f.cfg.GenerateScriptPath = out

	_, err := f.project.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.opens)

	sc, err := script.Read(out)
	require.NoError(t, err)
	assert.Equal(t, script.Default().Name, sc.Name)
	assert.Len(t, sc.Steps, len(script.Default().Steps))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.webm")
	require.NoError(t, os.WriteFile(src, []byte("abc"), 0644))

	dst := filepath.Join(dir, "nested", "b.webm")
	require.NoError(t, copyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// fakeFFmpeg writes a script that answers -filters and -encoders like an
// ffmpeg build whose only encoder is encoder.
func fakeFFmpeg(t *testing.T, encoder string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	body := "#!/bin/sh\n" +
		"case \"$2\" in\n" +
		"-filters) printf ' ... palettegen V->V x\\n ... paletteuse VV->V x\\n' ;;\n" +
		"-encoders) printf ' V....D " + encoder + " enc\\n' ;;\n" +
		"esac\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func TestPreflightRequiresCaptureEncoder(t *testing.T) {
	f := newFixture(t, "demo.gif")
	f.cfg.FFmpeg = fakeFFmpeg(t, "libx264")
	f.project.Preflight = f.project.checkTools

	_, err := f.project.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"libvpx" encoder`)
	assert.Zero(t, f.opens)
}

func TestPreflightAcceptsCaptureEncoder(t *testing.T) {
	f := newFixture(t, "demo.gif")
	f.cfg.FFmpeg = fakeFFmpeg(t, "libvpx")

	require.NoError(t, f.project.checkTools(context.Background()))
}

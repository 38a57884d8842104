package video

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Output GIF policy: file size against motion smoothness.
const (
	DefaultFPS        = 12
	DefaultScaleWidth = 960

	paletteName = "palette.png"
)

// Job describes one capture-to-artifact conversion.
type Job struct {
	InputPath  string
	OutputPath string
	FPS        int
	ScaleWidth int
	// PalettePath defaults to palette.png next to the input.
	PalettePath string
}

// NewJob returns a job with the default fps and width.
func NewJob(input, output string) Job {
	return Job{
		InputPath:  input,
		OutputPath: output,
		FPS:        DefaultFPS,
		ScaleWidth: DefaultScaleWidth,
	}
}

func (j Job) palette() string {
	if j.PalettePath != "" {
		return j.PalettePath
	}
	return filepath.Join(filepath.Dir(j.InputPath), paletteName)
}

func (j Job) Validate() error {
	if j.InputPath == "" || j.OutputPath == "" {
		return errors.New("input and output paths are required")
	}
	if j.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", j.FPS)
	}
	if j.ScaleWidth <= 0 {
		return fmt.Errorf("scale width must be positive, got %d", j.ScaleWidth)
	}
	return nil
}

// SubprocessError is a failed external encoder invocation. Output holds the
// tool's combined stdout and stderr.
type SubprocessError struct {
	Stage  string
	Args   []string
	Output string
	Err    error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s failed: %v, output: %s", e.Stage, e.Err, strings.TrimSpace(e.Output))
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// Transcoder runs the two encoder passes.
type Transcoder interface {
	GeneratePalette(ctx context.Context, job Job, palettePath string) error
	EncodeWithPalette(ctx context.Context, job Job, palettePath, outputPath string) error
}

// FFmpegTranscoder shells out to ffmpeg.
type FFmpegTranscoder struct {
	// Binary defaults to "ffmpeg".
	Binary string
}

func (e *FFmpegTranscoder) binary() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

func scaleFilter(job Job) string {
	return fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", job.FPS, job.ScaleWidth)
}

func (e *FFmpegTranscoder) paletteArgs(job Job, palettePath string) []string {
	return []string{
		"-y",
		"-i", job.InputPath,
		// stats_mode=diff weights changing pixels, which reduces loop flicker
		"-vf", scaleFilter(job) + ",palettegen=stats_mode=diff",
		palettePath,
	}
}

func (e *FFmpegTranscoder) encodeArgs(job Job, palettePath, outputPath string) []string {
	return []string{
		"-y",
		"-i", job.InputPath,
		"-i", palettePath,
		"-lavfi", scaleFilter(job) + "[x];[x][1:v]paletteuse=dither=bayer:bayer_scale=5",
		outputPath,
	}
}

func (e *FFmpegTranscoder) GeneratePalette(ctx context.Context, job Job, palettePath string) error {
	return e.run(ctx, "palette pass", e.paletteArgs(job, palettePath))
}

func (e *FFmpegTranscoder) EncodeWithPalette(ctx context.Context, job Job, palettePath, outputPath string) error {
	return e.run(ctx, "encode pass", e.encodeArgs(job, palettePath, outputPath))
}

func (e *FFmpegTranscoder) run(ctx context.Context, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &SubprocessError{Stage: stage, Args: args, Output: string(out), Err: err}
	}
	return nil
}

// Pipeline sequences the palette and encode passes.
type Pipeline struct {
	Transcoder Transcoder
	Logf       func(format string, args ...any)
}

func NewPipeline(t Transcoder) *Pipeline {
	return &Pipeline{Transcoder: t, Logf: log.Printf}
}

// Encode runs both passes. The artifact is encoded into a temporary file
// beside the output and renamed into place only after the encode pass
// succeeds, so the output path never holds a partial file. Failures are
// returned as they are; nothing is retried.
func (p *Pipeline) Encode(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	logf := p.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return err
	}

	palette := job.palette()
	start := time.Now()
	logf("[*] Palette pass: %s -> %s", job.InputPath, palette)
	if err := p.Transcoder.GeneratePalette(ctx, job, palette); err != nil {
		return err
	}

	tmp := partialPath(job.OutputPath)
	logf("[*] Encode pass: %d fps, %dpx wide", job.FPS, job.ScaleWidth)
	if err := p.Transcoder.EncodeWithPalette(ctx, job, palette, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, job.OutputPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move artifact into place: %w", err)
	}

	logf("[+] Encoded %s in %.1fs", job.OutputPath, time.Since(start).Seconds())
	return nil
}

// partialPath keeps the extension so the encoder picks the same muxer.
func partialPath(out string) string {
	dir, base := filepath.Split(out)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, filepath.Ext(base))+".partial"+filepath.Ext(base))
}

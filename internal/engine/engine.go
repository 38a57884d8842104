package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/demo2gif/internal/browser"
	"github.com/ivlev/demo2gif/internal/capture"
	"github.com/ivlev/demo2gif/internal/config"
	"github.com/ivlev/demo2gif/internal/director"
	"github.com/ivlev/demo2gif/internal/script"
	"github.com/ivlev/demo2gif/internal/system"
	"github.com/ivlev/demo2gif/internal/video"
)

// Session is a recorded page.
type Session interface {
	director.Page
	Close() error
}

// Stats are the timings of one run.
type Stats struct {
	Record    time.Duration
	Transcode time.Duration
	Total     time.Duration
	Steps     int
	Skipped   int
	Capture   capture.Artifact
}

// DemoProject records a script against the UI and produces the artifact.
type DemoProject struct {
	Config     *config.Config
	Open       capture.Opener[Session]
	Transcoder video.Transcoder
	// Preflight runs before the browser is started.
	Preflight func(ctx context.Context) error
	// Director overrides the director pacing; zero means defaults.
	Director *director.Options
	Logf     func(format string, args ...any)
}

func NewDemoProject(cfg *config.Config, open capture.Opener[Session], tr video.Transcoder) *DemoProject {
	p := &DemoProject{
		Config:     cfg,
		Open:       open,
		Transcoder: tr,
		Logf:       log.Printf,
	}
	p.Preflight = p.checkTools
	return p
}

func (p *DemoProject) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// Run executes one full recording. Nothing is retried; the first failure
// is returned.
func (p *DemoProject) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	start := time.Now()

	if p.Config.GenerateScriptPath != "" {
		return stats, p.generateScript()
	}
	if err := p.Config.Validate(); err != nil {
		return stats, err
	}

	sc, err := p.loadScript()
	if err != nil {
		return stats, err
	}

	if p.Preflight != nil {
		if err := p.Preflight(ctx); err != nil {
			return stats, fmt.Errorf("preflight: %w", err)
		}
	}

	opts := director.DefaultOptions(p.Config.BaseURL)
	if p.Director != nil {
		opts = *p.Director
	}
	opts.BaseURL = p.Config.BaseURL
	opts.WaitTimeout = p.Config.WaitTimeout
	opts.Strict = p.Config.Strict
	if opts.Logf == nil {
		opts.Logf = p.Logf
	}

	p.logf("[*] Recording %q (%d steps) against %s", sc.Name, len(sc.Steps), p.Config.BaseURL)
	mgr := capture.NewManager(p.Config.WorkDir, p.Logf)
	recordStart := time.Now()
	rep, art, err := capture.Run(ctx, mgr, p.Open, func(ctx context.Context, s Session) (director.Report, error) {
		d, err := director.New(s, opts)
		if err != nil {
			return director.Report{}, err
		}
		return d.Run(ctx, sc)
	})
	stats.Record = time.Since(recordStart)
	stats.Steps = rep.Steps
	stats.Skipped = len(rep.Skipped)
	if err != nil {
		return stats, fmt.Errorf("recording failed: %w", err)
	}
	stats.Capture = art
	p.logf("[+] Captured %s (%d KiB) in %.1fs", art.Path, art.Size>>10, stats.Record.Seconds())
	if stats.Skipped > 0 {
		p.logf("[!] %d steps were skipped", stats.Skipped)
	}

	transcodeStart := time.Now()
	if err := p.produce(ctx, art); err != nil {
		return stats, err
	}
	stats.Transcode = time.Since(transcodeStart)
	stats.Total = time.Since(start)

	if p.Config.ShowStats {
		p.printStats(stats)
	}
	return stats, nil
}

func (p *DemoProject) loadScript() (*script.Script, error) {
	if p.Config.ScriptPath == "" {
		return script.Default(), nil
	}
	sc, err := script.Read(p.Config.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	p.logf("[*] Using script: %s", p.Config.ScriptPath)
	return sc, nil
}

func (p *DemoProject) generateScript() error {
	out := p.Config.GenerateScriptPath
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := script.Write(script.Default(), out); err != nil {
		return err
	}
	p.logf("[+++] Script saved: %s", out)
	return nil
}

// produce writes the final artifact. A .webm output is the raw capture
// itself; any other output goes through the palette pipeline.
func (p *DemoProject) produce(ctx context.Context, art capture.Artifact) error {
	out := p.Config.OutputPath
	if strings.EqualFold(filepath.Ext(out), capture.Ext) {
		p.logf("[*] Copying raw capture to %s", out)
		return copyFile(art.Path, out)
	}

	pipe := video.NewPipeline(p.Transcoder)
	pipe.Logf = p.Logf
	return pipe.Encode(ctx, video.NewJob(art.Path, out))
}

func (p *DemoProject) checkTools(ctx context.Context) error {
	if err := system.CheckFFmpeg(p.Config.FFmpeg, "palettegen", "paletteuse"); err != nil {
		return err
	}
	if err := system.CheckEncoders(p.Config.FFmpeg, browser.CaptureEncoder); err != nil {
		return err
	}
	p.logf("[*] %s", system.MemoryReport())
	return nil
}

func (p *DemoProject) printStats(s Stats) {
	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Recording: %.2fs\n"+
			"Transcode: %.2fs\n"+
			"Steps: %d (skipped %d)\n"+
			"Capture: %s (%d KiB)\n"+
			"----------------------------\n",
		p.Config.BuildVersion, s.Total.Seconds(), s.Record.Seconds(), s.Transcode.Seconds(),
		s.Steps, s.Skipped, filepath.Base(s.Capture.Path), s.Capture.Size>>10,
	)
	fmt.Print(report)
}

// copyFile copies through a temporary file so dst is never partial.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*"+filepath.Ext(dst))
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivlev/demo2gif/internal/browser"
	"github.com/ivlev/demo2gif/internal/config"
	"github.com/ivlev/demo2gif/internal/engine"
	"github.com/ivlev/demo2gif/internal/system"
	"github.com/ivlev/demo2gif/internal/video"
)

var buildVersion = "dev"

func main() {
	// Chrome holds many file descriptors.
	system.InitResourceLimits()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}

	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "URL of the running UI (env BASE_URL)")
	flag.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Output file: .gif is transcoded, .webm keeps the raw capture (env OUTPUT)")
	flag.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Directory for raw captures, wiped on every run (env DEMO_WORK_DIR)")
	flag.StringVar(&cfg.ScriptPath, "script", cfg.ScriptPath, "YAML choreography to record instead of the built-in one (env DEMO_SCRIPT)")
	flag.StringVar(&cfg.GenerateScriptPath, "generate-script", "", "Write the built-in choreography to this YAML file and exit")
	flag.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail instead of skipping steps whose element is missing (env DEMO_STRICT)")
	flag.StringVar(&cfg.ChromePath, "chrome", cfg.ChromePath, "Chrome/Chromium executable (env CHROME_PATH)")
	flag.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless (env DEMO_HEADLESS)")
	flag.DurationVar(&cfg.WaitTimeout, "wait-timeout", cfg.WaitTimeout, "Timeout for wait_for steps (env DEMO_WAIT_TIMEOUT)")
	flag.StringVar(&cfg.FFmpeg, "ffmpeg", cfg.FFmpeg, "ffmpeg binary")
	flag.BoolVar(&cfg.ShowStats, "stats", cfg.ShowStats, "Print a timing report (env DEMO_STATS)")
	flag.Parse()
	cfg.BuildVersion = buildVersion

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bopts := browser.DefaultOptions()
	bopts.ExecPath = cfg.ChromePath
	bopts.Headless = cfg.Headless
	bopts.FFmpeg = cfg.FFmpeg
	open := func(ctx context.Context, dir string) (engine.Session, error) {
		s, err := browser.Open(ctx, dir, bopts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	project := engine.NewDemoProject(&cfg, open, &video.FFmpegTranscoder{Binary: cfg.FFmpeg})
	if _, err := project.Run(ctx); err != nil {
		stop()
		log.Printf("[-] Error: %v", err)
		os.Exit(1)
	}

	if cfg.GenerateScriptPath == "" {
		fmt.Printf("[+++] Done! Output: %s\n", cfg.OutputPath)
	}
}

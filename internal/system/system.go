package system

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InitResourceLimits raises the open file limit; Chrome keeps many
// descriptors open while the screencast runs.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not read the open file limit: %v", err)
		return
	}

	if rLimit.Cur >= 4096 {
		return
	}
	rLimit.Cur = 4096
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not raise the open file limit: %v", err)
	} else {
		fmt.Printf("[*] Open file limit raised to %d\n", rLimit.Cur)
	}
}

// CheckFFmpeg verifies that ffmpeg is on PATH and supports every filter in
// filters.
func CheckFFmpeg(binary string, filters ...string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", binary, err)
	}
	for _, f := range filters {
		if !CheckFilterSupport(binary, f) {
			return fmt.Errorf("%s has no %q filter", binary, f)
		}
	}
	return nil
}

// CheckEncoders verifies that the ffmpeg build lists every encoder in
// encoders.
func CheckEncoders(binary string, encoders ...string) error {
	for _, e := range encoders {
		if !CheckEncoderSupport(binary, e) {
			return fmt.Errorf("%s has no %q encoder", binary, e)
		}
	}
	return nil
}

// CheckFilterSupport reports whether the ffmpeg build lists the named filter.
func CheckFilterSupport(binary, name string) bool {
	return listed(binary, "-filters", name)
}

// CheckEncoderSupport reports whether the ffmpeg build lists the named encoder.
func CheckEncoderSupport(binary, name string) bool {
	return listed(binary, "-encoders", name)
}

func listed(binary, listing, name string) bool {
	out, err := exec.Command(binary, "-hide_banner", listing).CombinedOutput()
	if err != nil {
		return false
	}
	return listingHas(string(out), name)
}

// listingHas finds name in the second column of an ffmpeg -filters or
// -encoders listing.
func listingHas(out, name string) bool {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// MemoryReport returns a one-line summary of available memory.
func MemoryReport() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Sprintf("memory unavailable: %v", err)
	}
	return fmt.Sprintf("RAM: %d MiB free of %d MiB (%.0f%% used)",
		vm.Available>>20, vm.Total>>20, vm.UsedPercent)
}

// ReapChildren kills child processes of this process whose executable name
// contains any of names. It returns how many were killed. Headless Chrome
// sometimes leaves renderer or GPU helpers behind after the browser exits.
func ReapChildren(names ...string) (int, error) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	children, err := self.Children()
	if err != nil {
		if errors.Is(err, process.ErrorNoChildren) {
			return 0, nil
		}
		return 0, err
	}

	killed := 0
	for _, c := range children {
		name, err := c.Name()
		if err != nil || !matchesAny(strings.ToLower(name), names) {
			continue
		}
		if err := c.Kill(); err == nil {
			killed++
		}
	}
	return killed, nil
}

func matchesAny(name string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(name, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Package script describes a recording as an ordered list of steps. A script
// is plain data: it can be validated, written to YAML and read back without a
// browser.
package script

import (
	"errors"
	"fmt"
	"time"

	"github.com/ivlev/demo2gif/internal/annotation"
	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/theme"
)

// Kind selects what a Step does.
type Kind string

const (
	Navigate     Kind = "navigate"
	WaitFor      Kind = "wait_for"
	TypeInto     Kind = "type_into"
	Click        Kind = "click"
	Clear        Kind = "clear"
	ScrollTo     Kind = "scroll_to"
	ScrollTop    Kind = "scroll_top"
	Annotate     Kind = "annotate"
	Sleep        Kind = "sleep"
	TitleCard    Kind = "title_card"
	CursorInject Kind = "cursor_inject"
	CursorShow   Kind = "cursor_show"
	CursorHide   Kind = "cursor_hide"
)

// MaxPause bounds any single pause in a script.
const MaxPause = time.Minute

// Step is one action of a script. Which fields are used depends on Kind:
//
//	navigate     URL (absolute, or relative to the base URL)
//	wait_for     Target
//	type_into    Target, Text
//	click        Target
//	clear        Target
//	scroll_to    Target, Offset, Ms (pause after scrolling)
//	scroll_top   Ms
//	annotate     Note
//	sleep        Ms
//	title_card   Card, Ms (hold)
type Step struct {
	Kind   Kind             `yaml:"kind"`
	URL    string           `yaml:"url,omitempty"`
	Target *dom.Target      `yaml:"target,omitempty"`
	Text   string           `yaml:"text,omitempty"`
	Offset int              `yaml:"offset,omitempty"`
	Ms     int              `yaml:"ms,omitempty"`
	Note   *annotation.Spec `yaml:"note,omitempty"`
	Card   *theme.Card      `yaml:"card,omitempty"`
}

// Pause is the step's Ms as a duration.
func (s Step) Pause() time.Duration {
	return time.Duration(s.Ms) * time.Millisecond
}

func (s Step) String() string {
	switch s.Kind {
	case Navigate:
		return fmt.Sprintf("%s %s", s.Kind, s.URL)
	case TypeInto:
		return fmt.Sprintf("%s %s %q", s.Kind, s.Target, s.Text)
	case WaitFor, Click, Clear, ScrollTo:
		return fmt.Sprintf("%s %s", s.Kind, s.Target)
	case Annotate:
		if s.Note != nil {
			return fmt.Sprintf("%s %q", s.Kind, s.Note.Text)
		}
	case Sleep:
		return fmt.Sprintf("%s %dms", s.Kind, s.Ms)
	}
	return string(s.Kind)
}

// Validate checks that the fields required by Kind are present.
func (s Step) Validate() error {
	if s.Ms < 0 {
		return fmt.Errorf("negative pause %dms", s.Ms)
	}
	if s.Pause() > MaxPause {
		return fmt.Errorf("pause %s exceeds %s", s.Pause(), MaxPause)
	}

	needTarget := func() error {
		if s.Target == nil || s.Target.CSS == "" {
			return errors.New("missing target selector")
		}
		return nil
	}

	switch s.Kind {
	case Navigate:
		if s.URL == "" {
			return errors.New("missing url")
		}
	case WaitFor, Click, Clear, ScrollTo:
		return needTarget()
	case TypeInto:
		if err := needTarget(); err != nil {
			return err
		}
		if s.Text == "" {
			return errors.New("missing text to type")
		}
	case Annotate:
		if s.Note == nil {
			return errors.New("missing note")
		}
		if err := s.Note.Validate(); err != nil {
			return err
		}
		if s.Note.Duration() > MaxPause {
			return fmt.Errorf("note duration %s exceeds %s", s.Note.Duration(), MaxPause)
		}
	case TitleCard:
		if s.Card == nil || len(s.Card.Lines) == 0 {
			return errors.New("title card has no lines")
		}
	case Sleep, ScrollTop, CursorInject, CursorShow, CursorHide:
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

// Script is an ordered, immutable list of steps.
type Script struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name,omitempty"`
	Steps   []Step `yaml:"steps"`
}

// Validate checks every step and reports all problems at once.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	var errs []error
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, st.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// Duration is the sum of the script's explicit pauses. Glides, typing and
// page loads add to the real length of a recording.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Pause()
		if st.Kind == Annotate && st.Note != nil {
			d += st.Note.Duration()
		}
	}
	return d
}

// Targets lists every selector the script depends on, in order of first use.
func (s *Script) Targets() []dom.Target {
	seen := map[dom.Target]bool{}
	var out []dom.Target
	add := func(t dom.Target) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, st := range s.Steps {
		if st.Target != nil {
			add(*st.Target)
		}
		if st.Note != nil {
			add(st.Note.Anchor)
		}
	}
	return out
}

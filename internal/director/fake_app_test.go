package director

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ivlev/demo2gif/internal/dom"
)

// fakeApp models the flag UI closely enough to exercise the default script:
// a searchable, filterable list and a detail page per flag.
type fakeApp struct {
	flags map[string]fakeFlag

	route   string // "", "list", "card" or "detail"
	flag    string
	query   string
	filter  string // "all", "enabled", "disabled"
	focused string

	marker   *dom.Point
	visible  bool
	moves    int
	labels   map[string]string
	peak     int
	clicks   []string
	typed    []rune
	scrolled []float64
	cards    int
	visited  []string

	// located remembers which element was reported at which centre so
	// clicks can be routed back to it.
	located map[dom.Point]dom.Target
	slots   map[dom.Target]int
}

type fakeFlag struct {
	key       string
	enabled   bool
	targeting bool
}

var hrefRe = regexp.MustCompile(`a\[href\*="([^"]+)"\]`)

func newFakeApp() *fakeApp {
	keys := []struct {
		key       string
		enabled   bool
		targeting bool
	}{
		{"new-checkout-flow", true, true},
		{"checkout-button-color", true, false},
		{"pricing-experiment", true, true},
		{"password-policy", true, false},
		{"dark-mode", true, false},
		{"beta-dashboard", false, true},
		{"legacy-search", false, false},
		{"maintenance-banner", false, false},
		{"rate-limit", true, false},
		{"recommendations-v2", true, true},
		{"email-digest", true, false},
		{"onboarding-tour", false, false},
		{"cache-ttl", true, false},
		{"feature-x", true, false},
		{"welcome-message", true, false},
		{"max-upload-size", true, false},
	}
	a := &fakeApp{
		flags:   map[string]fakeFlag{},
		filter:  "all",
		labels:  map[string]string{},
		located: map[dom.Point]dom.Target{},
		slots:   map[dom.Target]int{},
	}
	for _, k := range keys {
		a.flags[k.key] = fakeFlag{key: k.key, enabled: k.enabled, targeting: k.targeting}
	}
	return a
}

// displayed lists the keys currently shown in the table, sorted.
func (a *fakeApp) displayed() []string {
	var out []string
	for k, f := range a.flags {
		if a.query != "" && !strings.Contains(k, a.query) {
			continue
		}
		if a.filter == "enabled" && !f.enabled || a.filter == "disabled" && f.enabled {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (a *fakeApp) exists(t dom.Target) bool {
	text := strings.ToLower(t.Text)
	switch {
	case a.route == "list" && hrefRe.MatchString(t.CSS):
		sub := hrefRe.FindStringSubmatch(t.CSS)[1]
		for _, k := range a.displayed() {
			if strings.Contains(k, sub) {
				return true
			}
		}
		return false
	case t.CSS == ".flag-table", t.CSS == ".flag-count", t.CSS == ".search-input":
		return a.route == "list"
	case t.CSS == ".filter-btn":
		return a.route == "list" && (text == "all" || text == "enabled" || text == "disabled")
	case t.CSS == ".flag-detail-back":
		return a.route == "detail"
	case t.CSS == "h2":
		if a.route != "detail" {
			return false
		}
		switch text {
		case "variants":
			return true
		case "targeting rules":
			return a.flags[a.flag].targeting
		}
		return false
	case t.CSS == ".detail-section:last-of-type .detail-card":
		return a.route == "detail"
	}
	return false
}

func (a *fakeApp) Rect(_ context.Context, t dom.Target) (dom.Rect, bool, error) {
	if !a.exists(t) {
		return dom.Rect{}, false, nil
	}
	slot, ok := a.slots[t]
	if !ok {
		slot = len(a.slots)
		a.slots[t] = slot
	}
	r := dom.Rect{X: float64(20 + 40*slot), Y: float64(60 + 30*slot), Width: 120, Height: 24}
	a.located[r.Center()] = t
	return r, true, nil
}

func (a *fakeApp) Navigate(_ context.Context, u string) error {
	a.visited = append(a.visited, u)
	a.route = "list"
	a.marker = nil
	return nil
}

func (a *fakeApp) SetContent(context.Context, string) error {
	a.route = "card"
	a.marker = nil
	a.cards++
	return nil
}

func (a *fakeApp) Click(_ context.Context, p dom.Point) error {
	t, ok := a.located[p]
	if !ok || !a.exists(t) {
		return fmt.Errorf("click at %s hit nothing", p)
	}
	a.clicks = append(a.clicks, t.String())
	a.focused = ""
	switch {
	case hrefRe.MatchString(t.CSS):
		sub := hrefRe.FindStringSubmatch(t.CSS)[1]
		for _, k := range a.displayed() {
			if strings.Contains(k, sub) {
				a.route, a.flag = "detail", k
				a.marker = nil
				break
			}
		}
	case t.CSS == ".flag-detail-back":
		a.route, a.flag = "list", ""
		a.marker = nil
	case t.CSS == ".filter-btn":
		a.filter = strings.ToLower(t.Text)
	case t.CSS == ".search-input":
		a.focused = t.CSS
	}
	return nil
}

func (a *fakeApp) TypeRune(_ context.Context, r rune) error {
	a.typed = append(a.typed, r)
	if a.focused == ".search-input" {
		a.query += string(r)
	}
	return nil
}

func (a *fakeApp) Clear(_ context.Context, t dom.Target) error {
	if t.CSS == ".search-input" {
		a.query = ""
	}
	return nil
}

func (a *fakeApp) ScrollBy(_ context.Context, dy float64) error {
	a.scrolled = append(a.scrolled, dy)
	return nil
}

func (a *fakeApp) ScrollTo(context.Context, float64) error { return nil }

func (a *fakeApp) Inject(context.Context) error {
	if a.marker == nil {
		a.marker = &dom.Point{}
	}
	return nil
}

func (a *fakeApp) SetVisible(_ context.Context, v bool) error {
	a.visible = v
	return nil
}

func (a *fakeApp) MoveTo(_ context.Context, p dom.Point) error {
	a.moves++
	if a.marker != nil {
		*a.marker = p
	}
	return nil
}

func (a *fakeApp) Position(context.Context) (dom.Point, bool, error) {
	if a.marker == nil {
		return dom.Point{}, false, nil
	}
	return *a.marker, true, nil
}

func (a *fakeApp) Mount(_ context.Context, id, text string, _ dom.Point) error {
	a.labels[id] = text
	if len(a.labels) > a.peak {
		a.peak = len(a.labels)
	}
	return nil
}

func (a *fakeApp) FadeOut(context.Context, string) error { return nil }

func (a *fakeApp) Remove(_ context.Context, id string) error {
	delete(a.labels, id)
	return nil
}

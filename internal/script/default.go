package script

import (
	"github.com/ivlev/demo2gif/internal/annotation"
	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/theme"
)

// Selectors of the flag UI that the default script relies on.
const (
	FlagTable     = ".flag-table"
	FlagCount     = ".flag-count"
	SearchInput   = ".search-input"
	FilterButton  = ".filter-btn"
	BackToList    = ".flag-detail-back"
	SectionHeader = "h2"
	LastCard      = ".detail-section:last-of-type .detail-card"
)

// ProjectURL is encoded as a QR code on the closing card.
const ProjectURL = "https://github.com/justinabrahms/flagd-ui"

// FlagLink targets the list row linking to a flag whose key contains key.
func FlagLink(key string) dom.Target {
	return dom.T(FlagTable + ` a[href*="` + key + `"]`)
}

// Filter targets the filter button labelled label.
func Filter(label string) dom.Target {
	return dom.Target{CSS: FilterButton, Text: label}
}

// Section targets a detail section heading.
func Section(title string) dom.Target {
	return dom.Target{CSS: SectionHeader, Text: title}
}

func NavigateTo(url string) Step { return Step{Kind: Navigate, URL: url} }

func WaitForElement(t dom.Target) Step { return Step{Kind: WaitFor, Target: &t} }

func TypeText(t dom.Target, text string) Step { return Step{Kind: TypeInto, Target: &t, Text: text} }

func ClickOn(t dom.Target) Step { return Step{Kind: Click, Target: &t} }

func ClearInput(t dom.Target) Step { return Step{Kind: Clear, Target: &t} }

func ScrollToElement(t dom.Target, offset, ms int) Step {
	return Step{Kind: ScrollTo, Target: &t, Offset: offset, Ms: ms}
}

func ScrollToTop(ms int) Step { return Step{Kind: ScrollTop, Ms: ms} }

func Note(text string, anchor dom.Target, p annotation.Placement, ms int) Step {
	return Step{Kind: Annotate, Note: &annotation.Spec{Text: text, Anchor: anchor, Placement: p, Ms: ms}}
}

func Pause(ms int) Step { return Step{Kind: Sleep, Ms: ms} }

func Card(c theme.Card, ms int) Step { return Step{Kind: TitleCard, Card: &c, Ms: ms} }

var (
	InjectCursor = Step{Kind: CursorInject}
	ShowCursor   = Step{Kind: CursorShow}
	HideCursor   = Step{Kind: CursorHide}
)

// backToList returns from a detail page and waits for the list to render.
func backToList() []Step {
	return []Step{
		ScrollToTop(400),
		ClickOn(dom.T(BackToList)),
		WaitForElement(dom.T(FlagTable)),
		InjectCursor,
		Pause(800),
	}
}

// openFlag clicks into a flag and scrolls to one of its sections.
func openFlag(key, section string, offset int) []Step {
	return []Step{
		WaitForElement(FlagLink(key)),
		ClickOn(FlagLink(key)),
		Pause(1500),
		ScrollToElement(Section(section), offset, 800),
	}
}

// Default is the flag UI walkthrough: search, three flag details, filters.
// Navigation is relative to the base URL.
func Default() *Script {
	accent := theme.Default().Accent
	muted := theme.Default().TextMuted

	var steps []Step
	add := func(s ...Step) { steps = append(steps, s...) }

	add(Card(theme.Card{Lines: []theme.Line{
		{Text: "flagd-ui", Size: "3.5rem", Mono: true, Color: accent},
		{Text: "A management UI for flagd", Size: "1.4rem", Color: muted, Bold: theme.Regular()},
	}}, 3000))

	// Flag list.
	add(
		NavigateTo("/"),
		WaitForElement(dom.T(FlagTable)),
		InjectCursor,
		Pause(1500),
		Note("16 flags loaded from a local git checkout", dom.T(FlagCount), annotation.Right, 2500),
		Pause(500),
	)

	// Search.
	add(
		ShowCursor,
		TypeText(dom.T(SearchInput), "checkout"),
		Pause(1500),
	)

	add(openFlag("new-checkout-flow", "Targeting Rules", 100)...)
	add(Note("Targeting rules — who sees what", dom.T(LastCard), annotation.Above, 2500))
	add(backToList()...)

	add(
		ClickOn(dom.T(SearchInput)),
		ClearInput(dom.T(SearchInput)),
		Pause(800),
	)

	add(openFlag("pricing-experiment", "Targeting Rules", 100)...)
	add(Note("Percentage rollout — A/B/C test", dom.T(LastCard), annotation.Above, 2500))
	add(backToList()...)

	add(openFlag("password-policy", "Variants", 80)...)
	add(Pause(1500))
	add(backToList()...)

	// Filters.
	add(
		ClickOn(Filter("disabled")),
		Pause(2000),
		ClickOn(Filter("All")),
		Pause(1500),
		HideCursor,
	)

	add(Card(theme.Card{
		Lines:    []theme.Line{{Text: "flagd-ui", Size: "2.6rem", Mono: true, Color: accent}},
		Subtitle: "Open source read-only UI for flagd.",
		Small:    ProjectURL,
		QR:       ProjectURL,
	}, 3000))

	return &Script{Version: "1.0", Name: "flagd-ui walkthrough", Steps: steps}
}

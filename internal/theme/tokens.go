package theme

// Tokens is the palette and font stacks shared by title cards and
// annotations. Values are never mutated at runtime.
type Tokens struct {
	Bg          string
	BgSurface   string
	Border      string
	Text        string
	TextMuted   string
	Accent      string
	AccentHover string
	Green       string
	FontStack   string
	MonoStack   string
}

var defaultTokens = Tokens{
	Bg:          "#0f1117",
	BgSurface:   "#1a1d27",
	Border:      "#2e3347",
	Text:        "#e1e4ed",
	TextMuted:   "#8b8fa7",
	Accent:      "#6e7bf2",
	AccentHover: "#8490ff",
	Green:       "#34d399",
	FontStack:   `"Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif`,
	MonoStack:   `"JetBrains Mono", "Fira Code", "Cascadia Code", monospace`,
}

// Default returns a copy of the tokens that mirror the application's
// stylesheet.
func Default() Tokens {
	return defaultTokens
}

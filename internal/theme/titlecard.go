// Package theme renders the intro and outro title cards shown before and
// after the live part of a recording.
package theme

import (
	"encoding/base64"
	"fmt"
	"html"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultLineSize = "2.8rem"
	headingSpacing  = "-0.02em"
	bodySpacing     = "0.01em"
	qrPixels        = 256
)

// Line is one row of a title card.
type Line struct {
	Text    string `yaml:"text"`
	Size    string `yaml:"size,omitempty"` // CSS length, defaults to 2.8rem
	Color   string `yaml:"color,omitempty"`
	Mono    bool   `yaml:"mono,omitempty"`
	Bold    *bool  `yaml:"bold,omitempty"` // nil means bold
	Spacing string `yaml:"spacing,omitempty"`
}

// Card describes a full-screen slide.
type Card struct {
	Lines    []Line `yaml:"lines"`
	Subtitle string `yaml:"subtitle,omitempty"`
	Small    string `yaml:"small,omitempty"`
	// QR, when set, is encoded as a QR code below the text.
	QR string `yaml:"qr,omitempty"`
}

// Regular returns a pointer suitable for Line.Bold to turn bold off.
func Regular() *bool {
	b := false
	return &b
}

// Render produces the card's HTML document with the Default tokens.
func Render(c Card) string {
	return Default().Render(c)
}

// Render produces the card's HTML document. Identical cards produce
// byte-identical output. Optional blocks are omitted entirely when empty.
func (t Tokens) Render(c Card) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"></head>\n")
	fmt.Fprintf(&b, `<body style="margin:0;display:flex;align-items:center;justify-content:center;flex-direction:column;height:100vh;background:%s;text-align:center;padding:3rem;gap:0.3rem;">`, t.Bg)
	b.WriteString("\n")

	for _, l := range c.Lines {
		b.WriteString(t.line(l))
		b.WriteString("\n")
	}

	if c.Subtitle != "" {
		fmt.Fprintf(&b, `<div style="font-size:1.15rem;color:%s;font-family:%s;font-weight:400;margin-top:2rem;max-width:580px;line-height:1.7;letter-spacing:0.01em;">%s</div>`,
			t.TextMuted, attr(t.FontStack), html.EscapeString(c.Subtitle))
		b.WriteString("\n")
	}

	if c.Small != "" {
		fmt.Fprintf(&b, `<div style="font-size:0.9rem;color:%s;font-family:%s;font-weight:400;margin-top:2.5rem;opacity:0.5;letter-spacing:0.03em;">%s</div>`,
			t.TextMuted, attr(t.MonoStack), html.EscapeString(c.Small))
		b.WriteString("\n")
	}

	if c.QR != "" {
		if img := qrImage(c.QR); img != "" {
			fmt.Fprintf(&b, `<img alt="" src="%s" style="margin-top:2rem;width:160px;height:160px;border-radius:8px;">`, img)
			b.WriteString("\n")
		}
	}

	b.WriteString("</body></html>")
	return b.String()
}

func (t Tokens) line(l Line) string {
	size := l.Size
	if size == "" {
		size = defaultLineSize
	}
	color := l.Color
	if color == "" {
		color = t.Text
	}
	font := t.FontStack
	if l.Mono {
		font = t.MonoStack
	}
	weight := "700"
	if l.Bold != nil && !*l.Bold {
		weight = "400"
	}
	spacing := l.Spacing
	if spacing == "" {
		spacing = letterSpacing(size)
	}
	return fmt.Sprintf(`<div style="font-size:%s;color:%s;font-family:%s;font-weight:%s;line-height:1.2;letter-spacing:%s;margin:0;">%s</div>`,
		size, color, attr(font), weight, spacing, html.EscapeString(l.Text))
}

// letterSpacing tightens headings (2rem and up) and loosens smaller text.
func letterSpacing(size string) string {
	v, ok := remSize(size)
	if ok && v < 2 {
		return bodySpacing
	}
	return headingSpacing
}

// remSize converts a CSS length to rem. Pixel and point sizes assume the
// 16px root font size; other units are taken as rem.
func remSize(size string) (float64, bool) {
	v, ok := leadingFloat(size)
	if !ok {
		return 0, false
	}
	unit := strings.ToLower(strings.TrimSpace(size))
	switch {
	case strings.HasSuffix(unit, "px"):
		return v / 16, true
	case strings.HasSuffix(unit, "pt"):
		return v / 12, true
	}
	return v, true
}

// leadingFloat parses the numeric prefix of a CSS length such as "1.4rem".
func leadingFloat(s string) (float64, bool) {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// attr makes a font stack safe inside a double-quoted style attribute.
func attr(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}

func qrImage(content string) string {
	png, err := qrcode.Encode(content, qrcode.Medium, qrPixels)
	if err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

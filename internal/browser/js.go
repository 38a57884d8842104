package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ivlev/demo2gif/internal/dom"
	"github.com/ivlev/demo2gif/internal/theme"
)

const cursorID = "__fake_cursor"

// findFn resolves a dom.Target inside the page.
const findFn = `function __find(css, text) {
  const want = (text || "").toLowerCase();
  for (const el of document.querySelectorAll(css)) {
    if (!want || (el.textContent || "").toLowerCase().includes(want)) return el;
  }
  return null;
}`

// jsArgs encodes values as a JavaScript argument list.
func jsArgs(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b = []byte("null")
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, ",")
}

// call wraps body in a function invoked with args. The body must return a
// JSON-serialisable value.
func call(params, body string, args ...any) string {
	return fmt.Sprintf("(function(%s){%s\n%s})(%s)", params, findFn, body, jsArgs(args...))
}

func rectJS(t dom.Target) string {
	return call("css, text", `
  const el = __find(css, text);
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};`, t.CSS, t.Text)
}

// clearJS empties an input through the native value setter so frameworks
// that track the value (React) see the change.
func clearJS(t dom.Target) string {
	return call("css, text", `
  const el = __find(css, text);
  if (!el) return false;
  const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, "value").set;
  setter.call(el, "");
  el.dispatchEvent(new Event("input", {bubbles: true}));
  el.dispatchEvent(new Event("change", {bubbles: true}));
  return true;`, t.CSS, t.Text)
}

func scrollByJS(dy float64) string {
	return call("dy", `window.scrollBy({top: dy, behavior: "smooth"}); return true;`, dy)
}

func scrollToJS(y float64) string {
	return call("y", `window.scrollTo({top: y, behavior: "smooth"}); return true;`, y)
}

func injectCursorJS(t theme.Tokens) string {
	return call("id, fill, stroke", `
  if (document.getElementById(id)) return true;
  const el = document.createElement("div");
  el.id = id;
  Object.assign(el.style, {
    position: "fixed", top: "0px", left: "0px", width: "20px", height: "20px",
    borderRadius: "50%", background: fill, border: "2px solid " + stroke,
    pointerEvents: "none", zIndex: "999999", transform: "translate(-50%, -50%)",
    transition: "opacity 0.2s", opacity: "0",
  });
  document.body.appendChild(el);
  return true;`, cursorID, rgba(t.Accent, 0.55), rgba(t.Accent, 0.9))
}

func cursorVisibleJS(visible bool) string {
	opacity := "0"
	if visible {
		opacity = "1"
	}
	return call("id, opacity", `
  const el = document.getElementById(id);
  if (el) el.style.opacity = opacity;
  return true;`, cursorID, opacity)
}

func cursorMoveJS(p dom.Point) string {
	return call("id, x, y", `
  const el = document.getElementById(id);
  if (el) { el.style.left = x + "px"; el.style.top = y + "px"; }
  return true;`, cursorID, p.X, p.Y)
}

func cursorPositionJS() string {
	return call("id", `
  const el = document.getElementById(id);
  if (!el) return {found: false};
  return {found: true, x: parseFloat(el.style.left) || 0, y: parseFloat(el.style.top) || 0};`, cursorID)
}

func mountLabelJS(t theme.Tokens, id, text string, p dom.Point) string {
	return call("id, text, x, y, bg, border, color, font", `
  const pill = document.createElement("div");
  pill.id = id;
  pill.className = "__annotation";
  pill.textContent = text;
  Object.assign(pill.style, {
    position: "fixed", zIndex: "999998", left: x + "px", top: y + "px",
    background: bg, backdropFilter: "blur(8px)", border: "1px solid " + border,
    color: color, fontFamily: font, fontSize: "0.85rem", fontWeight: "600",
    padding: "0.45em 1em", borderRadius: "6px", whiteSpace: "nowrap",
    opacity: "0", transition: "opacity 0.4s ease-in-out", pointerEvents: "none",
  });
  document.body.appendChild(pill);
  requestAnimationFrame(() => { pill.style.opacity = "1"; });
  return true;`, id, text, p.X, p.Y, rgba(t.Accent, 0.18), rgba(t.Accent, 0.5), t.Text, t.FontStack)
}

func fadeLabelJS(id string) string {
	return call("id", `
  const el = document.getElementById(id);
  if (el) el.style.opacity = "0";
  return true;`, id)
}

func removeLabelJS(id string) string {
	return call("id", `
  const el = document.getElementById(id);
  if (el) el.remove();
  return true;`, id)
}

// rgba converts a #rrggbb token to an rgba() colour with the given alpha.
func rgba(hex string, alpha float64) string {
	var r, g, b int
	if _, err := fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return hex
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", r, g, b, alpha)
}

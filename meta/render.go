package meta

import "strings"

// escaper rewrites the four characters that can break out of an attribute
// value or text node. Ampersand first, so already-escaped input is escaped
// literally rather than double-decoded.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape returns s with HTML-significant characters replaced by entities.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Render emits the record as a static HTML fragment. Every interpolated
// value, attribute keys included, passes through Escape.
func Render(r Record) string {
	switch r.Kind {
	case KindTitle:
		return "<title>" + Escape(r.Value) + "</title>"
	case KindProperty:
		return `<meta property="` + Escape(r.Name) + `" content="` + Escape(r.Content) + `">`
	case KindNamed:
		return `<meta name="` + Escape(r.Name) + `" content="` + Escape(r.Content) + `">`
	case KindFreeform:
		var b strings.Builder
		b.WriteString("<meta")
		for _, a := range r.Attrs {
			b.WriteByte(' ')
			b.WriteString(Escape(a.Key))
			b.WriteString(`="`)
			b.WriteString(Escape(a.Value))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		return b.String()
	}
	return ""
}

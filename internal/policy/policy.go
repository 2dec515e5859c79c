// Package policy embeds a Content-Security-Policy directive into
// fragment markup before it reaches the sandboxed rendering surface.
//
// The default policy denies everything except inline script and style,
// same-document images and fonts, and embedded data/blob payloads.
// Inline script is the guest's only way to run code: external script
// loading stays denied regardless of configuration.
package policy

import (
	"strings"

	"golang.org/x/net/html"
)

// Config controls the generated policy.
type Config struct {
	// Policy, when non-empty, replaces the generated policy wholesale.
	Policy string
	// AllowExternalConnections permits network egress from the guest.
	// When false the connect-src directive is 'none'.
	AllowExternalConnections bool
	// AllowedHosts limits egress to the listed origins when external
	// connections are allowed. Empty or nil means all hosts.
	AllowedHosts []string
}

// Inject returns html with a CSP meta tag embedded. Original bytes are
// only ever added to, never removed or reordered. Inputs that are not
// recognizable HTML documents are wrapped in a minimal document.
func Inject(markup string, cfg *Config) string {
	tag := metaTag(Build(cfg))

	headEnd, htmlEnd, doctypeEnd := insertionPoints(markup)
	switch {
	case headEnd >= 0:
		return markup[:headEnd] + tag + markup[headEnd:]
	case doctypeEnd >= 0:
		return markup[:doctypeEnd] + "<head>" + tag + "</head>" + markup[doctypeEnd:]
	case htmlEnd >= 0:
		return markup[:htmlEnd] + "<head>" + tag + "</head>" + markup[htmlEnd:]
	default:
		return "<!DOCTYPE html><html><head>" + tag + "</head><body>" + markup + "</body></html>"
	}
}

// Build computes the policy string for the given configuration.
func Build(cfg *Config) string {
	if cfg != nil && cfg.Policy != "" {
		return cfg.Policy
	}

	connectSrc := "'none'"
	if cfg != nil && cfg.AllowExternalConnections {
		if len(cfg.AllowedHosts) > 0 {
			connectSrc = strings.Join(cfg.AllowedHosts, " ")
		} else {
			connectSrc = "*"
		}
	}

	directives := []string{
		"default-src 'none'",
		"script-src 'unsafe-inline'",
		"style-src 'unsafe-inline'",
		"img-src 'self' data: blob:",
		"font-src 'self' data: blob:",
		"connect-src " + connectSrc,
		"frame-ancestors 'none'",
		"form-action 'none'",
	}
	return strings.Join(directives, "; ")
}

func metaTag(policy string) string {
	return `<meta http-equiv="Content-Security-Policy" content="` + policy + `">`
}

// insertionPoints scans the markup once and reports the byte offset
// just past the opening head tag, the opening html tag, and the
// doctype declaration; -1 when absent. The tokenizer consumes input
// sequentially, so summing raw token lengths tracks exact offsets and
// tolerates mixed case, attributes, and missing self-closing slashes.
func insertionPoints(markup string) (headEnd, htmlEnd, doctypeEnd int) {
	headEnd, htmlEnd, doctypeEnd = -1, -1, -1

	z := html.NewTokenizer(strings.NewReader(markup))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		end := offset + len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				headEnd = end
				return
			case "html":
				if htmlEnd < 0 {
					htmlEnd = end
				}
			}
		case html.DoctypeToken:
			if doctypeEnd < 0 {
				doctypeEnd = end
			}
		}
		offset = end
	}
}

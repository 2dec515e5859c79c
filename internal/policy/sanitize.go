package policy

import "github.com/microcosm-cc/bluemonday"

// sanitizer strips active content while keeping formatting, links, and
// images. Hosts that refuse to execute guest script at all apply this
// before Inject; it is never part of the default pipeline, since
// inline script is the normal way fragments run.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}()

// StripActiveContent removes script, event handlers, and other active
// content from fragment markup.
func StripActiveContent(markup string) string {
	return sanitizer.Sanitize(markup)
}

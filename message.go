package action

import "strings"

// Static fallbacks used when no message descriptor matches and the signal
// carried no explicit message. Deliberately generic: raw error text is
// never assumed safe for end users.
const (
	defaultErrorMessage   = "Something went wrong"
	defaultSuccessMessage = "Action completed successfully"
)

// resolveMessage walks the channel's descriptors most-recently-declared
// first and returns the first message that matches and resolves to a
// non-blank value, with its prefix applied. Handler failures are reported
// and skipped so a broken message handler never masks the condition being
// described.
func resolveMessage(a *Action, c *Context, ch channel, cond error, fallback string) string {
	for _, d := range a.registry.handlers(ch) {
		if !d.applies(c, cond) {
			continue
		}
		msg, err := d.body.message(c, cond)
		if err != nil {
			report(c.logger(), "resolving message", err, "action", a.name)
			continue
		}
		if strings.TrimSpace(msg) == "" {
			continue
		}
		return applyPrefix(d, c, cond, msg)
	}
	return fallback
}

// applyPrefix prepends the descriptor's prefix to a non-blank message.
// A prefix that fails to resolve leaves the message untouched.
func applyPrefix(d *descriptor, c *Context, cond error, msg string) string {
	if d.prefix == nil {
		return msg
	}
	prefix, err := d.prefix.message(c, cond)
	if err != nil {
		report(c.logger(), "resolving message prefix", err, "action", c.Name())
		return msg
	}
	return prefix + msg
}

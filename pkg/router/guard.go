package router

type guardVerdict uint8

const (
	verdictAllow guardVerdict = iota
	verdictDeny
	verdictRedirect
)

// GuardResult is the verdict of a Guard. The zero value allows.
type GuardResult struct {
	verdict  guardVerdict
	data     any
	reason   string
	redirect string
	replace  bool
}

// Allow lets the navigation proceed.
func Allow() GuardResult {
	return GuardResult{verdict: verdictAllow}
}

// AllowWith lets the navigation proceed and forwards data to the loaders
// as NavigationContext.GuardData.
func AllowWith(data any) GuardResult {
	return GuardResult{verdict: verdictAllow, data: data}
}

// Deny blocks the navigation. The reason is passed to the unauthorized
// handler and reported on the error channel.
func Deny(reason string) GuardResult {
	return GuardResult{verdict: verdictDeny, reason: reason}
}

// Redirect abandons the navigation and starts a new one to path.
func Redirect(path string, replace bool) GuardResult {
	return GuardResult{verdict: verdictRedirect, redirect: path, replace: replace}
}

// GuardBool converts a plain allow/deny decision.
func GuardBool(allow bool) GuardResult {
	if allow {
		return Allow()
	}
	return Deny("")
}

// Allowed reports whether the result lets the navigation proceed.
func (g GuardResult) Allowed() bool { return g.verdict == verdictAllow }

// Denied reports whether the result blocks the navigation.
func (g GuardResult) Denied() bool { return g.verdict == verdictDeny }

// RedirectTarget returns the redirect path and whether the result is a redirect.
func (g GuardResult) RedirectTarget() (path string, replace bool, ok bool) {
	return g.redirect, g.replace, g.verdict == verdictRedirect
}

// Reason returns the denial reason.
func (g GuardResult) Reason() string { return g.reason }

// Data returns the value attached with AllowWith.
func (g GuardResult) Data() any { return g.data }

// String returns "allow", "deny" or "redirect".
func (g GuardResult) String() string {
	switch g.verdict {
	case verdictDeny:
		return "deny"
	case verdictRedirect:
		return "redirect"
	default:
		return "allow"
	}
}

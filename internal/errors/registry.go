package errors

import "sort"

// Template defines a registered error.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Route table file errors.
const (
	CodeFileNotFound   = "W001"
	CodeInvalidYAML    = "W002"
	CodeUnknownField   = "W003"
	CodeUnsupportedVer = "W004"
)

// Route definition errors.
const (
	CodeMissingPath      = "W010"
	CodeMalformedPattern = "W011"
	CodeDuplicateRoute   = "W012"
	CodeEmptyRoutes      = "W013"
	CodeUnknownLoader    = "W014"
	CodeUnknownView      = "W015"
	CodeUnknownGuard     = "W016"
	CodeInvalidCache     = "W017"
	CodeInvalidMatcher   = "W018"
)

// CLI and runtime errors.
const (
	CodeInvalidTarget = "W030"
	CodeNoMatch       = "W031"
	CodeWatchFailed   = "W040"
	CodeServeFailed   = "W041"
)

var registry = map[string]Template{
	// ============================================
	// File Errors (W001-W009)
	// ============================================

	CodeFileNotFound: {
		Category:   CategoryConfig,
		Message:    "Route table file not found",
		Detail:     "The waypoint CLI reads routes from waypoint.yaml in the current directory unless --config points elsewhere.",
		Suggestion: "Create waypoint.yaml or pass --config <file>",
	},
	CodeInvalidYAML: {
		Category: CategoryConfig,
		Message:  "Invalid YAML",
		Detail:   "The route table file could not be parsed.",
	},
	CodeUnknownField: {
		Category: CategoryConfig,
		Message:  "Unknown field in route table",
		Detail:   "The file contains a key the route table does not define. This is usually a typo.",
	},
	CodeUnsupportedVer: {
		Category:   CategoryConfig,
		Message:    "Unsupported route table version",
		Detail:     "Only version 1 route tables are supported.",
		Suggestion: "Set version: 1",
	},

	// ============================================
	// Route Errors (W010-W029)
	// ============================================

	CodeMissingPath: {
		Category:   CategoryValidation,
		Message:    "Route has no path",
		Detail:     "Every route needs a path pattern, relative to its parent.",
		Suggestion: `Add path: "/users/:id"`,
	},
	CodeMalformedPattern: {
		Category: CategoryValidation,
		Message:  "Malformed route pattern",
		Detail:   "Patterns are '/'-separated segments; a parameter segment is ':' followed by a name made of letters, digits and '_'.",
	},
	CodeDuplicateRoute: {
		Category: CategoryValidation,
		Message:  "Duplicate route",
		Detail:   "Two routes resolve to the same full pattern. Only the first could ever match.",
	},
	CodeEmptyRoutes: {
		Category:   CategoryValidation,
		Message:    "No routes defined",
		Detail:     "The route table must define at least one route.",
		Suggestion: "Add a routes: list",
	},
	CodeUnknownLoader: {
		Category: CategoryValidation,
		Message:  "Unknown loader",
		Detail:   "The loader name is not registered with the CLI.",
	},
	CodeUnknownView: {
		Category: CategoryValidation,
		Message:  "Unknown view",
		Detail:   "The view name is not registered with the CLI.",
	},
	CodeUnknownGuard: {
		Category: CategoryValidation,
		Message:  "Unknown guard",
		Detail:   "Guards are written as allow, deny[:reason] or redirect:<path>.",
	},
	CodeInvalidCache: {
		Category: CategoryValidation,
		Message:  "Invalid cache policy",
		Detail:   "Strategy must be none, by-path-and-params, by-path-params-and-query or by-full-url; ttl must be a non-negative duration.",
	},
	CodeInvalidMatcher: {
		Category:   CategoryValidation,
		Message:    "Invalid matcher mode",
		Detail:     "The matcher mode must be auto or regexp.",
		Suggestion: "Remove the matcher key to use auto",
	},

	// ============================================
	// CLI Errors (W030-W049)
	// ============================================

	CodeInvalidTarget: {
		Category:   CategoryCLI,
		Message:    "Invalid navigation target",
		Detail:     "Targets are absolute paths with an optional query and fragment.",
		Suggestion: "Use a path such as /products/77?ref=home",
	},
	CodeNoMatch: {
		Category: CategoryCLI,
		Message:  "No route matches",
	},
	CodeWatchFailed: {
		Category: CategoryRuntime,
		Message:  "Cannot watch route table",
		Detail:   "The file watcher could not be started; the server keeps running without reload.",
	},
	CodeServeFailed: {
		Category:   CategoryRuntime,
		Message:    "Devtools server failed",
		Suggestion: "Check that the address is free or pass --addr",
	},
}

// Codes returns all registered codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for a code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

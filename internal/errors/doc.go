// Package errors provides structured, actionable errors for the waypoint
// CLI and its route table file.
//
// Each error has a code (e.g., "W011") that maps to a short message, a
// longer explanation and, where one exists, a hint. Errors raised while
// reading waypoint.yaml carry the file position and the lines around it.
//
// # Codes
//
//   - W001-W009: route table file (missing, unparsable, unknown keys)
//   - W010-W029: route definitions (patterns, duplicates, unknown loaders)
//   - W030-W049: CLI and devtools server
//
// # Usage
//
//	err := errors.New(errors.CodeDuplicateRoute).
//	    WithLocation("waypoint.yaml", 12, 11).
//	    WithSuggestion("Rename one of the routes")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR W012: Duplicate route
//	//
//	//   waypoint.yaml:12:11
//	//
//	//     10 │   - path: /users/:id
//	//     11 │     loader: echo
//	//   → 12 │   - path: /users/:id
//	//        │           ^
//	//
//	//   Hint: Rename one of the routes
package errors

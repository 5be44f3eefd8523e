// Package errors classifies error values for metric and log tagging.
package errors

import (
	goerrors "errors"
	"fmt"
	"strings"
)

// Classify reduces an error to a stable tag value: the innermost wrapped
// error's Go type, lowercased with package dots turned into underscores.
// Errors built with errors.New all collapse to "errors_errorstring".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	name = strings.ToLower(strings.ReplaceAll(name, ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}

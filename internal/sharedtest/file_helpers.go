package sharedtest

import (
	"os"

	th "github.com/launchdarkly/go-test-helpers/v3"
)

// WithTempFileContaining creates a temporary file with the given content, passes its path to the
// action, and deletes it afterward.
func WithTempFileContaining(data []byte, action func(filename string)) {
	th.WithTempFile(func(filename string) {
		if err := os.WriteFile(filename, data, 0600); err != nil {
			panic(err)
		}
		action(filename)
	})
}

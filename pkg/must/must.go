// Package must provides small helpers for operations whose errors can only
// be logged, not meaningfully propagated (e.g. closing a resource while
// already unwinding from another error).
package must

import (
	"io"

	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
)

// Close closes c, logging (rather than returning) any error.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %v", err)
	}
}

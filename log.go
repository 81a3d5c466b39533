package action

import (
	"log/slog"
	"os"
	"sync"

	"github.com/m-mizutani/masq"
)

// baseLogger is the built-in fallback: a text handler on stderr with
// secret-shaped attribute keys masked. Declared Sensitive fields are
// additionally replaced with the redaction marker before values ever
// reach a handler, so contract-level redaction does not depend on
// handler configuration.
var baseLogger = sync.OnceValue(func() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: masq.New(
			masq.WithContain("password"),
			masq.WithContain("secret"),
			masq.WithContain("token"),
			masq.WithContain("api_key"),
		),
	})
	return slog.New(h)
})

// defaultLogger returns the configured default logger, or the built-in
// fallback when none was configured.
func defaultLogger() *slog.Logger {
	if l := configuredLogger(); l != nil {
		return l
	}
	return baseLogger()
}

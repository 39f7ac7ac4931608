// Package logging provides structured logging for promptlint.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Output to stderr so stdout carries only lint reports
//   - Automatic context field injection (document path)
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, os.Stderr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithDocument(ctx, "agents/router.md")
//	logger.Debug(ctx, "document validated", zap.Int("errors", 2))
//
// Output includes the document the entry belongs to:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "debug",
//	  "msg": "document validated",
//	  "document.path": "agents/router.md",
//	  "errors": 2
//	}
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// # Concurrency Safety
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging

// Package logger builds slog loggers with environment presets, context
// extractors and a fixed vocabulary of billing attributes.
//
//	log := logger.NewFromConfig(cfg,
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "Webhook event processed",
//		logger.EventID(ev.ID),
//		logger.Outcome("applied"),
//	)
//
// Identifier helpers return an empty Attr for empty values so optional ids can
// be passed unconditionally.
package logger

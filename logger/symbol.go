package logger

import (
	"go.uber.org/zap"

	"github.com/teranos/chronograph/sym"
)

// Symbol-aware logging helpers.
// The symbol travels as a structured field so logs stay queryable by it
// and messages stay clean.

// WithSymbol returns l with the given symbol attached
func WithSymbol(l *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	return l.With(FieldSymbol, symbol)
}

// AddCronSymbol marks entries from the scheduling cycle (꩜)
func AddCronSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return WithSymbol(l, sym.Cron)
}

// AddDBSymbol marks entries from the storage layer (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return WithSymbol(l, sym.DB)
}

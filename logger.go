package ignite

import "go.uber.org/zap"

// StdLogger is the logging seam the supply engine writes through. It is
// satisfied by *zap.SugaredLogger, and by anything else an embedding
// application wants to plug in instead.
type StdLogger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// nopLogger discards everything; it is the default until ConfigureLogger is
// called.
type nopLogger struct{}

func (nopLogger) Debugw(string, ...interface{}) {}
func (nopLogger) Infow(string, ...interface{})  {}
func (nopLogger) Errorw(string, ...interface{}) {}

// Logger is the package-level logging seam, swappable by the embedding
// application via ConfigureLogger.
var Logger StdLogger = nopLogger{}

// ConfigureLogger installs z (wrapped in its Sugar form) as Logger.
func ConfigureLogger(z *zap.Logger) {
	Logger = z.Sugar()
}

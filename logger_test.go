package trafficgen

// testLogger is a no-op Logger for tests that don't assert on log output.
// (internal.NullLogger can't be used here: it imports this package.)
type testLogger struct{}

func (testLogger) Debugf(format string, v ...any) {}
func (testLogger) Debug(message string)           {}
func (testLogger) Infof(format string, v ...any)  {}
func (testLogger) Info(message string)            {}
func (testLogger) Warnf(format string, v ...any)  {}
func (testLogger) Warn(message string)            {}

var _ Logger = testLogger{}

package logger

// Logger is the logging contract shared by all pipeline components.
// Fields carry structured context such as image dimensions and timings.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

type NopLogger struct{}

// NewNop returns a logger that discards everything. Library constructors
// use it when the caller passes nil.
func NewNop() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(component, message string, fields map[string]interface{})   {}
func (n *NopLogger) Info(component, message string, fields map[string]interface{})    {}
func (n *NopLogger) Warning(component, message string, fields map[string]interface{}) {}
func (n *NopLogger) Error(component string, err error, fields map[string]interface{}) {}

// OrNop replaces a nil logger with the no-op implementation.
func OrNop(log Logger) Logger {
	if log == nil {
		return NewNop()
	}
	return log
}

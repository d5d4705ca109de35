package recorder

// NoopRecorder is used when no SQLite path is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *Run) error     { return nil }
func (n *NoopRecorder) RecordTrial(_ *Trial) error { return nil }
func (n *NoopRecorder) Close() error               { return nil }

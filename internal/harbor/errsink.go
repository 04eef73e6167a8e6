package harbor

// ErrorSink receives per-item failures so that a batch keeps going
// when a single item cannot be fetched or stored. Record must be safe
// to call after a partial write; implementations decide durability.
type ErrorSink interface {
	Record(kind, itemID string, err error)
	Close() error
}

// NopSink discards recorded errors.
type NopSink struct{}

func NewNopSink() *NopSink { return &NopSink{} }

func (*NopSink) Record(string, string, error) {}
func (*NopSink) Close() error                 { return nil }

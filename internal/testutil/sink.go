package testutil

import "fmt"

// RecordedError is one failure captured by MemorySink.
type RecordedError struct {
	Kind   string
	ItemID string
	Err    error
}

// MemorySink collects error-sink records for assertions.
type MemorySink struct {
	Records []RecordedError
	Closed  bool
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Record(kind, itemID string, err error) {
	s.Records = append(s.Records, RecordedError{Kind: kind, ItemID: itemID, Err: err})
}

func (s *MemorySink) Close() error {
	s.Closed = true
	return nil
}

// Summary renders the captured records for failure messages.
func (s *MemorySink) Summary() string {
	out := ""
	for _, r := range s.Records {
		out += fmt.Sprintf("%s %s: %v\n", r.Kind, r.ItemID, r.Err)
	}
	return out
}

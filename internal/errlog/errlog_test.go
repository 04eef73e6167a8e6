package errlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
	"harbor-go/internal/testutil"
)

func TestFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.ndjson")
	clock := testutil.NewStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	sink, err := NewFileSink(path, clock, harbor.NewNopLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	sink.Record("post", "p1", errors.New("fetch failed"))
	clock.Advance(time.Minute)
	sink.Record("comment", "c9", errors.New("insert failed"))
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var records []model.ItemError
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec model.ItemError
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Kind != "post" || records[0].ItemID != "p1" || records[0].Message != "fetch failed" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[0].ID == records[1].ID {
		t.Error("record ids should be unique")
	}
	if !records[1].OccurredAt.After(records[0].OccurredAt) {
		t.Errorf("timestamps not ordered: %v then %v", records[0].OccurredAt, records[1].OccurredAt)
	}
}

func TestFileSinkAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.ndjson")
	clock := testutil.NewStubClock(time.Now())

	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path, clock, harbor.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		sink.Record("author", "bob", errors.New("lookup failed"))
		sink.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("lines = %d, want records from both sessions", lines)
	}
}

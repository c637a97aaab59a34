package segment

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestAppendAndIterate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	records := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, r := range records {
		if err := f.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got [][]byte
	err = Iterate(path, func(payload []byte) error {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		got = append(got, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i, r := range records {
		if string(got[i]) != string(r) {
			t.Errorf("record %d: got %q, want %q", i, got[i], r)
		}
	}
}

func TestAppendBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	if err := f.AppendBatch(payloads); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	wantSize := int64(0)
	for _, p := range payloads {
		wantSize += int64(4 + len(p))
	}
	if f.Size() != wantSize {
		t.Errorf("Size() = %d, want %d", f.Size(), wantSize)
	}
}

func TestReaderSequential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = f.Append([]byte("one"))
	_ = f.Append([]byte("two"))
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(first) != "one" {
		t.Errorf("first record = %q, want %q", first, "one")
	}
	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(second) != "two" {
		t.Errorf("second record = %q, want %q", second, "two")
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}

func TestIterateEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.Close()

	var calls int
	if err := Iterate(path, func(payload []byte) error { calls++; return nil }); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no callback invocations for empty file, got %d", calls)
	}
}

func TestReopenPreservesExistingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	f1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = f1.Append([]byte("persisted"))
	if err := f1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := Open(path)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer f2.Close()
	if f2.Size() == 0 {
		t.Fatal("expected reopened file to report existing size")
	}
	_ = f2.Append([]byte("appended-after-reopen"))

	var got []string
	err = Iterate(path, func(payload []byte) error {
		got = append(got, string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(got) != 2 || got[0] != "persisted" || got[1] != "appended-after-reopen" {
		t.Fatalf("unexpected records after reopen: %v", got)
	}
}

package fingerprint

import (
	"bytes"
	"sync/atomic"
	"testing"
)

func TestFingerprintStability(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")

	a, err := FromReaderAt(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("FromReaderAt error: %v", err)
	}
	b, err := FromReaderAt(bytes.NewReader(append([]byte(nil), content...)), int64(len(content)))
	if err != nil {
		t.Fatalf("FromReaderAt error: %v", err)
	}

	if a != b {
		t.Errorf("identical content produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintDiffersOnTruncation(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	truncated := content[:len(content)-10]

	full, err := FromReaderAt(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("FromReaderAt error: %v", err)
	}
	short, err := FromReaderAt(bytes.NewReader(truncated), int64(len(truncated)))
	if err != nil {
		t.Fatalf("FromReaderAt error: %v", err)
	}

	if full == short {
		t.Errorf("truncated file must not share a fingerprint with the original, even with a matching content prefix")
	}
}

// countingReaderAt wraps a ReaderAt and records how many bytes each ReadAt
// call requested, so the bounded-I/O invariant (three 32 KiB reads for any
// file larger than 10 MiB) can be verified without a multi-megabyte fixture.
type countingReaderAt struct {
	data  []byte
	calls int32
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	if off >= int64(len(c.data)) {
		return 0, nil
	}
	n := copy(p, c.data[off:])
	return n, nil
}

func TestFingerprintBoundedIOForLargeFiles(t *testing.T) {
	const largeSize = 20 * 1024 * 1024
	reader := &countingReaderAt{data: make([]byte, 4)}

	if _, err := FromReaderAt(reader, largeSize); err != nil {
		t.Fatalf("FromReaderAt error: %v", err)
	}

	if reader.calls != 3 {
		t.Errorf("expected exactly 3 sample reads for a file above the threshold, got %d", reader.calls)
	}
}

func TestEmptyConstant(t *testing.T) {
	if Empty != "" {
		t.Errorf("directory entries must carry an empty hash")
	}
}

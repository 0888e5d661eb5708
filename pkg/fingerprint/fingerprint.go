// Package fingerprint implements the file fingerprint (C3): a deterministic,
// size-tagged 128-bit content digest. It is the content-addressing scheme
// shared by the server's change log and the client's three-way diff.
//
// The fingerprint is not cryptographic and must never be used for trust or
// authentication decisions (spec.md 4.3); it exists purely to detect content
// changes cheaply, including for files too large to read in full.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

const (
	// sampleThreshold is the file size below which the entire file is
	// hashed. At or above this size, only bounded samples are read.
	sampleThreshold = 10 * 1024 * 1024
	// sampleSize is the size of each of the three samples taken from a
	// large file: one at the start, one at the midpoint, one at the end.
	sampleSize = 32 * 1024
	// size is the width, in bytes, of a fingerprint.
	size = 16
)

// Empty is the fingerprint of a directory entry, per spec.md 3 ("hash, empty
// for directory entries").
const Empty = ""

// Compute opens the file at path and computes its fingerprint. Files smaller
// than 10 MiB are hashed in their entirety; larger files are hashed from
// three 32 KiB samples (offset 0, size/2, size-32KiB), bounding I/O to 96
// KiB regardless of file size.
func Compute(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to open file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errors.Wrap(err, "unable to stat file")
	}

	return FromReaderAt(file, info.Size())
}

// FromReaderAt computes the fingerprint of a file of the given size, reading
// through r. It is the core of Compute, split out so tests can verify the
// exact bounded-I/O behavior for large files without needing multi-megabyte
// fixtures on disk.
func FromReaderAt(r io.ReaderAt, fileSize int64) (string, error) {
	if fileSize < 0 {
		return "", errors.New("negative file size")
	}

	var sampled []byte
	if fileSize < sampleThreshold {
		buffer := make([]byte, fileSize)
		if _, err := io.ReadFull(io.NewSectionReader(r, 0, fileSize), buffer); err != nil && err != io.EOF {
			return "", errors.Wrap(err, "unable to read file content")
		}
		sampled = buffer
	} else {
		offsets := []int64{0, fileSize / 2, fileSize - sampleSize}
		sampled = make([]byte, 0, sampleSize*3)
		buffer := make([]byte, sampleSize)
		for _, offset := range offsets {
			n, err := r.ReadAt(buffer, offset)
			if err != nil && err != io.EOF {
				return "", errors.Wrap(err, "unable to read sample region")
			}
			sampled = append(sampled, buffer[:n]...)
		}
	}

	return fromBytes(sampled, uint64(fileSize)), nil
}

// fromBytes computes the 128-bit murmur3 digest of data, then overwrites the
// leading bytes of the digest buffer with the unsigned-varint encoding of
// fileSize, producing the size-tagged fingerprint described in spec.md 4.3.
// Two files with identical sampled content but different sizes therefore
// always produce different fingerprints, since the varint encoding of a
// size is unique to that size.
func fromBytes(data []byte, fileSize uint64) string {
	h1, h2 := murmur3.Sum128(data)

	var digest [size]byte
	binary.BigEndian.PutUint64(digest[0:8], h1)
	binary.BigEndian.PutUint64(digest[8:16], h2)

	var varintBuffer [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuffer[:], fileSize)
	copy(digest[:n], varintBuffer[:n])

	return hex.EncodeToString(digest[:])
}

package bot

import (
	"crypto/sha1"
	"fmt"
	"os"

	"cardfarm/internal/fileutil"
)

// writeSentryChunk persists a machine-auth chunk of the sentry blob and
// returns the bytes written and the resulting file size. The common case is
// a single whole-file chunk at offset zero, which is written atomically so a
// crash never leaves a truncated sentry behind; partial chunks at an offset
// patch the existing file in place.
func writeSentryChunk(path string, offset uint32, data []byte) (int, int64, error) {
	if offset == 0 {
		if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
			return 0, 0, fmt.Errorf("write sentry: %w", err)
		}
		return len(data), int64(len(data)), nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return 0, 0, fmt.Errorf("open sentry: %w", err)
	}
	defer f.Close()

	n, err := f.WriteAt(data, int64(offset))
	if err != nil {
		return n, 0, fmt.Errorf("write sentry: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return n, 0, fmt.Errorf("stat sentry: %w", err)
	}
	return n, info.Size(), nil
}

// sentryHash computes the SHA-1 over the whole sentry blob. Returns nil when
// the file does not exist yet.
func sentryHash(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	sum := sha1.Sum(data)
	return sum[:]
}

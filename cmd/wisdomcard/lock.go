package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Serve Lock
// ///////////////////////////////////////////////

// lockToken returns a random 16-character hex token. The serve lock file
// holds "PID:TOKEN" so [removeLock] only deletes a file this process wrote.
func lockToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writeLock opens the serve lock file, locks it, and records this
// process. The returned file must stay open while the server runs.
func writeLock(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.ServeLock(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open serve lock: %w", err)
	}
	fail := func(step string, err error) (*os.File, error) {
		_ = unlock(f)
		f.Close()
		return nil, fmt.Errorf("%s serve lock: %w", step, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock serve lock: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		return fail("write", err)
	}
	return f, nil
}

// removeLock unlocks and closes f, then deletes the lock file if it still
// carries token.
func removeLock(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlock(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.ServeLock())
	if err != nil {
		return
	}
	if _, tok, ok := strings.Cut(string(data), ":"); ok && tok == token {
		os.Remove(dp.ServeLock())
	}
}

// checkStaleLock reports whether another server holds the lock, and its
// PID when readable. A lock file nobody holds is left over from a crash
// and is removed.
func checkStaleLock(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.ServeLock(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if err := tryLock(f); err != nil {
		data, _ := os.ReadFile(dp.ServeLock())
		f.Close()
		head, _, _ := strings.Cut(string(data), ":")
		if p, err := strconv.Atoi(head); err == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlock(f)
	f.Close()
	os.Remove(dp.ServeLock())
	return false, 0
}

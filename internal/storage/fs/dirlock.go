package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const dirLockName = "mdtasks.lock"

var ErrDirLocked = errors.New("data directory in use")

// DirLock is an exclusive flock on a data directory. The holder writes its
// pid into the lock file so a competing process can name it.
type DirLock struct {
	file *os.File
}

// LockDir takes the lock on dir, retrying until timeout. A non-positive
// timeout makes a single attempt.
func LockDir(dir string, timeout time.Duration) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(dir, dirLockName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			_ = file.Close()
			return nil, err
		}
		if !time.Now().Before(deadline) {
			holder := lockHolder(file)
			_ = file.Close()
			return nil, fmt.Errorf("%w: %s held by %s: %w", ErrDirLocked, dir, holder, os.ErrDeadlineExceeded)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := file.Truncate(0); err != nil {
		_ = file.Close()
		return nil, err
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &DirLock{file: file}, nil
}

func lockHolder(file *os.File) string {
	buf := make([]byte, 32)
	n, _ := file.ReadAt(buf, 0)
	pid := strings.TrimSpace(string(buf[:n]))
	if pid == "" {
		return "an unknown process"
	}
	return "pid " + pid
}

// Release clears the recorded pid and drops the lock.
func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

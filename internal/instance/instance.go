package instance

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrAlreadyRunning means another launcher holds the instance lock.
	ErrAlreadyRunning = errors.New("another instance is already running")
	// ErrPortBusy means something already listens on the server's address
	// before the server was started.
	ErrPortBusy = errors.New("port already in use")
)

// Lock is a held single-instance lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Release unlocks; it is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// HostPort extracts host:port from an http(s) URL, filling the scheme's
// default port.
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// CheckPortFree fails with ErrPortBusy when addr already accepts TCP
// connections within timeout.
func CheckPortFree(rawURL string, timeout time.Duration) error {
	addr, err := HostPort(rawURL)
	if err != nil {
		return err
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil
	}
	_ = conn.Close()
	return fmt.Errorf("%w: %s", ErrPortBusy, addr)
}

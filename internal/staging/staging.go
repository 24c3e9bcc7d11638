package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/channelup/internal/logger"
)

// Prefix starts every staging directory name.
const Prefix = "channelup-"

// Kinds of staging directories.
const (
	KindCandidate = "candidate"
	KindCache     = "cache"
)

var nameRe = regexp.MustCompile(`^channelup-([a-z]+)-(\d+)-`)

var errNoSelf = errors.New("current process not found")

var registry = struct {
	sync.Mutex
	dirs map[string]*Dir
}{dirs: make(map[string]*Dir)}

// Dir is an owned staging directory.
type Dir struct {
	path string
	once sync.Once
	err  error
}

// Acquire creates a uniquely named directory under root (the OS temp
// directory when empty) and registers it for release.
func Acquire(root, kind string) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}

	path, err := os.MkdirTemp(root, fmt.Sprintf("%s%s-%d-", Prefix, kind, os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	if path, err = filepath.Abs(path); err != nil {
		return nil, fmt.Errorf("resolve staging directory: %w", err)
	}

	d := &Dir{path: path}

	registry.Lock()
	registry.dirs[path] = d
	registry.Unlock()

	return d, nil
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Release removes the directory. Only the first call does any work.
func (d *Dir) Release() error {
	d.once.Do(func() {
		registry.Lock()
		delete(registry.dirs, d.path)
		registry.Unlock()

		d.err = os.RemoveAll(d.path)
	})

	return d.err
}

// ReleaseAll removes every directory still registered by this process.
func ReleaseAll() error {
	registry.Lock()

	dirs := make([]*Dir, 0, len(registry.dirs))
	for _, d := range registry.dirs {
		dirs = append(dirs, d)
	}

	registry.Unlock()

	var errs []error

	for _, d := range dirs {
		if err := d.Release(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func registered(path string) bool {
	registry.Lock()
	defer registry.Unlock()

	_, ok := registry.dirs[path]

	return ok
}

// Sweep removes staging directories under root whose owning process no
// longer runs, or which are older than maxAge. Directories registered by
// this process are never touched. It returns the removed paths.
func Sweep(ctx context.Context, root string, maxAge time.Duration) ([]string, error) {
	if root == "" {
		root = os.TempDir()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list staging root: %w", err)
	}

	alive, err := runningProcesses()
	if err != nil {
		return nil, err
	}

	var removed []string

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return removed, err
		}

		match := nameRe.FindStringSubmatch(entry.Name())
		if match == nil || !entry.IsDir() {
			continue
		}

		path := filepath.Join(root, entry.Name())
		if abs, absErr := filepath.Abs(path); absErr == nil && registered(abs) {
			continue
		}

		pid, _ := strconv.Atoi(match[2])

		info, err := entry.Info()
		if err != nil {
			continue
		}

		_, running := alive[pid]
		expired := maxAge > 0 && time.Since(info.ModTime()) > maxAge

		if running && !expired {
			continue
		}

		if err = os.RemoveAll(path); err != nil {
			logger.WarnKV(ctx, "Unable to remove stale staging directory", "path", path, "error", err)

			continue
		}

		logger.InfoKV(ctx, "Removed stale staging directory", "path", path, "kind", match[1], "pid", pid)

		removed = append(removed, path)
	}

	return removed, nil
}

// runningProcesses returns the ids of live processes running this executable.
func runningProcesses() (map[int]struct{}, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("inspect current process: %w", err)
	}

	if self == nil {
		return nil, errNoSelf
	}

	alive := make(map[int]struct{})

	for _, process := range processList {
		if process.Executable() != self.Executable() {
			continue
		}

		alive[process.Pid()] = struct{}{}
	}

	return alive, nil
}

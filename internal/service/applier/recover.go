package applier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
)

// Recover settles a promotion interrupted by a crash. When the live
// directory is missing it is restored from the newest backup; leftover
// next-state and backup directories are removed. It reports whether the live
// directory was restored.
func (a *Applier) Recover(ctx context.Context, targetDir string) (bool, error) {
	ctx = logger.WithName(ctx, "applier")

	targetDir, err := filepath.Abs(targetDir)
	if err != nil {
		return false, &installation.PromotionError{Phase: "recover", Err: err}
	}

	parent, base := filepath.Dir(targetDir), filepath.Base(targetDir)

	entries, err := a.sys.ReadDir(parent)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, &installation.PromotionError{Phase: "recover", Err: err}
	}

	type leftover struct {
		path string
		info os.FileInfo
	}

	var backups, nexts []leftover

	for _, entry := range entries {
		name := entry.Name()

		var list *[]leftover

		switch {
		case strings.HasPrefix(name, "."+base+oldInfix):
			list = &backups
		case strings.HasPrefix(name, "."+base+nextInfix):
			list = &nexts
		default:
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}

		*list = append(*list, leftover{path: filepath.Join(parent, name), info: info})
	}

	if len(backups) == 0 && len(nexts) == 0 {
		return false, nil
	}

	restored := false

	if _, err = a.sys.Stat(targetDir); errors.Is(err, os.ErrNotExist) && len(backups) > 0 {
		sort.Slice(backups, func(i, j int) bool {
			return backups[i].info.ModTime().After(backups[j].info.ModTime())
		})

		if err = a.sys.Rename(backups[0].path, targetDir); err != nil {
			return false, &installation.PromotionError{Phase: "recover", Err: err}
		}

		logger.WarnKV(ctx, "Restored installation from an interrupted update", "target", targetDir,
			"backup", backups[0].path)

		backups = backups[1:]
		restored = true
	}

	var errs []error

	for _, l := range append(backups, nexts...) {
		logger.InfoKV(ctx, "Removing leftover directory", "dir", l.path)

		if rmErr := a.sys.RemoveAll(l.path); rmErr != nil {
			errs = append(errs, rmErr)
		}
	}

	if err = errors.Join(errs...); err != nil {
		return restored, &installation.PromotionError{Phase: "recover", Err: err}
	}

	return restored, nil
}

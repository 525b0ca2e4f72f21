// Package reportfs discovers extracted reports on disk and files them away
// once they have been handled.
package reportfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// reportNameRe matches extractor output named after the publication epoch,
// e.g. "water_level_1716960600.json".
var reportNameRe = regexp.MustCompile(`^water_level_(\d+)\.json$`)

// Inbox lists, reads and moves report files. It implements pipeline.Source.
type Inbox struct {
	dir        string
	archiveDir string
	rejectDir  string
	logger     *slog.Logger
}

// NewInbox creates an Inbox over dir. Handled files move to archiveDir,
// rejected ones to rejectDir.
func NewInbox(dir, archiveDir, rejectDir string, logger *slog.Logger) *Inbox {
	return &Inbox{
		dir:        dir,
		archiveDir: archiveDir,
		rejectDir:  rejectDir,
		logger:     logger,
	}
}

// ParseName extracts the epoch from a report file name.
func ParseName(name string) (int64, bool) {
	m := reportNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	epoch, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// Pending returns the reports waiting in the inbox, oldest first. A missing
// inbox directory is treated as empty.
func (i *Inbox) Pending(ctx context.Context) ([]domain.ReportRef, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list inbox %s: %w", i.dir, err)
	}

	var refs []domain.ReportRef
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.IsDir() {
			continue
		}
		epoch, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		refs = append(refs, domain.ReportRef{Name: e.Name(), Path: filepath.Join(i.dir, e.Name()), Epoch: epoch})
	}
	sort.Slice(refs, func(a, b int) bool { return refs[a].Epoch < refs[b].Epoch })
	return refs, nil
}

// Latest returns the most recent pending report.
func (i *Inbox) Latest(ctx context.Context) (domain.ReportRef, bool, error) {
	refs, err := i.Pending(ctx)
	if err != nil || len(refs) == 0 {
		return domain.ReportRef{}, false, err
	}
	return refs[len(refs)-1], true, nil
}

// Open reads and decodes a report file.
func (i *Inbox) Open(_ context.Context, ref domain.ReportRef) (domain.Report, error) {
	return ReadReport(ref.Path)
}

// ReadReport decodes a report file. The epoch comes from the file name when
// it follows the water_level_<epoch>.json convention.
func ReadReport(path string) (domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Report{}, fmt.Errorf("read report: %w", err)
	}
	tables, err := domain.DecodeTables(data)
	if err != nil {
		return domain.Report{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	epoch, _ := ParseName(filepath.Base(path))
	return domain.Report{Epoch: epoch, Source: filepath.Base(path), Tables: tables}, nil
}

// Archive moves a handled report out of the inbox.
func (i *Inbox) Archive(_ context.Context, ref domain.ReportRef) error {
	return i.move(ref, i.archiveDir)
}

// Reject moves a report that cannot be normalized out of the inbox so it is
// not retried.
func (i *Inbox) Reject(_ context.Context, ref domain.ReportRef) error {
	return i.move(ref, i.rejectDir)
}

func (i *Inbox) move(ref domain.ReportRef, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	dst := filepath.Join(dir, ref.Name)
	if err := os.Rename(ref.Path, dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", ref.Name, dir, err)
	}
	i.logger.Debug("report moved", "file", ref.Name, "to", dir)
	return nil
}

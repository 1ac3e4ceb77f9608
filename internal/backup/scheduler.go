package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/HAB39/3laNota/internal/domain"
)

// Source produces the snapshot a scheduled backup writes.
type Source interface {
	Export(ctx context.Context) (domain.Snapshot, error)
}

type Scheduler struct {
	source Source
	dir    string
	keep   int
	now    func() time.Time
	cron   *gocron.Scheduler
}

// NewScheduler writes a backup to dir every day at the HH:MM given in at,
// keeping the newest keep files.
func NewScheduler(source Source, dir string, at string, keep int, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	if keep < 1 {
		keep = 1
	}
	s := &Scheduler{
		source: source,
		dir:    dir,
		keep:   keep,
		now:    func() time.Time { return time.Now().In(loc) },
		cron:   gocron.NewScheduler(loc),
	}
	if _, err := s.cron.Every(1).Day().At(at).Do(s.run); err != nil {
		return nil, fmt.Errorf("schedule backup at %q: %w", at, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	path, err := s.WriteNow(ctx)
	if err != nil {
		log.Printf("[backup] WARN: scheduled backup failed: %v", err)
		return
	}
	log.Printf("[backup] wrote %s", path)
}

// WriteNow writes today's backup file, replacing one written earlier the
// same day, and prunes old files.
func (s *Scheduler) WriteNow(ctx context.Context) (string, error) {
	snap, err := s.source.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("export ledger: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(s.dir, FileName(s.now()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write backup: %w", err)
	}

	if digest, err := Digest(snap); err == nil {
		log.Printf("[backup] %s digest %s", filepath.Base(path), digest)
	}
	if err := s.prune(); err != nil {
		log.Printf("[backup] WARN: prune old backups: %v", err)
	}
	return path, nil
}

func (s *Scheduler) prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "backup_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) <= s.keep {
		return nil
	}
	slices.Sort(names)
	for _, name := range names[:len(names)-s.keep] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// FileName is the download and on-disk name of a backup taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("backup_%s.json", t.Format("20060102"))
}

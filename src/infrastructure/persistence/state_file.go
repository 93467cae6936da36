package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/argoproj-labs/appset-gate/src/domain"
	"github.com/argoproj-labs/appset-gate/src/domain/repository"
)

// fileStateRepository keeps one pretty-printed JSON document per branch in a
// directory, so an operator can seed or clear a known-good record with a text
// editor. Writes go through a temp file, fsync and rename; a rename that
// returned is durable. Every branch has its own file and its own lock, so
// branches never contend with each other.
type fileStateRepository struct {
	dir   string
	locks sync.Map // domain.BranchKey -> *sync.Mutex
}

// NewFileStateRepository opens the state directory. A missing directory is an
// error unless createMissing is set; an existing file that does not parse is
// an error, never an empty store. Silently starting empty would present data
// loss as "no known-good commit".
func NewFileStateRepository(dir string, createMissing bool) (repository.StateRepository, error) {
	if info, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WithMessagef(err, "While opening state directory %q", dir)
		}
		if !createMissing {
			return nil, errors.Errorf("State directory %q does not exist (give --state-dir-create to create it)", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithMessagef(err, "While creating state directory %q", dir)
		}
	} else if !info.IsDir() {
		return nil, errors.Errorf("State directory %q is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		content, err := os.ReadFile(match)
		if err != nil {
			return nil, errors.WithMessagef(err, "While reading state file %q", match)
		}
		record := domain.KnownGoodRecord{}
		if err := json.Unmarshal(content, &record); err != nil {
			return nil, errors.WithMessagef(err, "State file %q is corrupt", match)
		}
	}

	return &fileStateRepository{dir: dir}, nil
}

func (self *fileStateRepository) GetByKey(ctx context.Context, key domain.BranchKey) (*domain.KnownGoodRecord, error) {
	content, err := os.ReadFile(self.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "While reading record for %q", key)
	}

	record := domain.KnownGoodRecord{}
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, errors.WithMessagef(err, "Record for %q is corrupt", key)
	}
	return &record, nil
}

func (self *fileStateRepository) Save(ctx context.Context, key domain.BranchKey, record domain.KnownGoodRecord) error {
	lock, _ := self.locks.LoadOrStore(key, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(self.dir, ".known-good-*")
	if err != nil {
		return errors.WithMessagef(err, "While creating temp file for %q", key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(content, '\n')); err != nil {
		tmp.Close()
		return errors.WithMessagef(err, "While writing record for %q", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.WithMessagef(err, "While flushing record for %q", key)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), self.path(key)); err != nil {
		return errors.WithMessagef(err, "While replacing record for %q", key)
	}

	// The rename itself has to reach stable storage as well.
	if d, err := os.Open(self.dir); err != nil {
		return err
	} else {
		defer d.Close()
		return d.Sync()
	}
}

// path derives the key's filename. Each part is percent-encoded and the
// encoding never emits the "." separator, so distinct keys never share a
// file.
func (self *fileStateRepository) path(key domain.BranchKey) string {
	parts := []string{
		sanitizePart(key.ApplicationSetName),
		sanitizePart(key.Organization),
		sanitizePart(key.Repository),
		sanitizePart(key.Branch),
	}
	return filepath.Join(self.dir, strings.Join(parts, ".")+".json")
}

func sanitizePart(part string) string {
	var builder strings.Builder
	for i := 0; i < len(part); i++ {
		c := part[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			builder.WriteByte(c)
		default:
			fmt.Fprintf(&builder, "%%%02X", c)
		}
	}
	return builder.String()
}

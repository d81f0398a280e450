package featureflag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

// FileCommitterID is the committer recorded for rules applied from a file.
const FileCommitterID = "file-watcher"

// RulesFile is the YAML layout of a rules file:
//
//	features:
//	  DUMMY_FEATURE:
//	    commit_message: enable in dev
//	    rules:
//	      - filters:
//	          - type: server_mode
//	            conditions: [["=", "dev"]]
//	        value_when_matched: true
type RulesFile struct {
	Features map[string]FileEntry `yaml:"features"`
}

type FileEntry struct {
	CommitMessage string `yaml:"commit_message"`
	Rules         []Rule `yaml:"rules"`
}

func ParseRulesFile(b []byte) (*RulesFile, error) {
	var f RulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &f, nil
}

// FileLoader applies the rules in a YAML file and, when watched, reapplies
// them whenever the file changes.
type FileLoader struct {
	path     string
	svc      *Service
	debounce time.Duration
}

func NewFileLoader(path string, svc *Service) *FileLoader {
	return &FileLoader{path: path, svc: svc, debounce: 500 * time.Millisecond}
}

func (l *FileLoader) WithDebounce(d time.Duration) *FileLoader {
	l.debounce = d
	return l
}

// Load applies every feature whose rules differ from the stored ones and
// returns the names it updated. Errors for single features do not stop the
// others from being applied.
func (l *FileLoader) Load(ctx context.Context) ([]string, error) {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	file, err := ParseRulesFile(b)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(file.Features))
	for n := range file.Features {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		updated []string
		errs    []error
	)
	for _, name := range names {
		entry := file.Features[name]
		if entry.Rules == nil {
			entry.Rules = []Rule{}
		}
		if cur, err := l.svc.registry.Get(ctx, name); err == nil && reflect.DeepEqual(cur.Rules, entry.Rules) {
			continue
		}
		msg := entry.CommitMessage
		if msg == "" {
			msg = "Update rules from " + filepath.Base(l.path)
		}
		if _, err := l.svc.UpdateFeatureFlagRules(ctx, name, FileCommitterID, msg, entry.Rules); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		updated = append(updated, name)
	}
	return updated, errors.Join(errs...)
}

func (l *FileLoader) reload(ctx context.Context) {
	updated, err := l.Load(ctx)
	if err != nil {
		logger.With("file", l.path).Errorf("feature flag rules reload: %v", err)
	}
	if len(updated) > 0 {
		logger.With("file", l.path).Infof("feature flag rules reloaded for %v", updated)
	}
}

// Watch blocks until ctx is cancelled, reloading the file after each burst
// of writes. The parent directory is watched so editors that replace the
// file are picked up as well.
func (l *FileLoader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	filename := filepath.Base(l.path)
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return err
	}
	logger.Infof("watching %s for feature flag rule changes", l.path)

	var timer *time.Timer
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filename || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(l.debounce, func() { l.reload(ctx) })
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("feature flag watcher: %v", err)
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}

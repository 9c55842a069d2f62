// Package fs keeps the exit history as one JSON document per pid on any
// afs supported storage.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/history"
)

// Service implements a storage backed history
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ history.Service = (*Service)(nil)

// Save persists record
func (s *Service) Save(ctx context.Context, record *model.ExitRecord) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.PID <= 0 {
		return fmt.Errorf("%w: %d", dao.ErrInvalidID, record.PID)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal exit record %d: %w", record.PID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.recordURL(record.PID)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save exit record to %s: %w", URL, err)
	}
	return nil
}

// Load returns the record of pid
func (s *Service) Load(ctx context.Context, pid int) (*model.ExitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	URL := s.recordURL(pid)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check exit record %s: %w", URL, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: pid %d", dao.ErrNotFound, pid)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read exit record %s: %w", URL, err)
	}
	record := &model.ExitRecord{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exit record %s: %w", URL, err)
	}
	return record, nil
}

// Delete removes the record of pid
func (s *Service) Delete(ctx context.Context, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.recordURL(pid)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check exit record %s: %w", URL, err)
	}
	if !exists {
		return fmt.Errorf("%w: pid %d", dao.ErrNotFound, pid)
	}
	return s.fs.Delete(ctx, URL)
}

// List returns records matching parameters ordered by pid
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.ExitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list exit records: %w", err)
	}
	var records []*model.ExitRecord
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read exit record %s: %w", object.URL(), err)
		}
		record := &model.ExitRecord{}
		if err = json.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exit record %s: %w", object.URL(), err)
		}
		if history.Match(record, parameters) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return history.ByPID(records[i], records[j]) })
	return records, nil
}

func (s *Service) recordURL(pid int) string {
	return url.Join(s.basePath, fmt.Sprintf("%d.json", pid))
}

// New creates a history rooted at basePath
func New(basePath string) (*Service, error) {
	return NewWithFS(afs.New(), basePath)
}

// NewWithFS creates a history on the supplied storage service
func NewWithFS(fs afs.Service, basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	basePath = url.Normalize(basePath, file.Scheme)
	return &Service{basePath: basePath, fs: fs}, nil
}

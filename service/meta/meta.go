// Package meta loads configuration and workload documents from any afs
// supported location, expanding ${env.KEY} references on the way.
package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"
)

// Service downloads documents
type Service struct {
	fs      afs.Service
	options []storage.Option
	lookup  func(key string) string
}

// Download returns the content at URL with environment references expanded
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", URL, err)
	}
	return []byte(expandEnv(string(data), s.lookup)), nil
}

// Load decodes the YAML document at URL into target
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", URL, err)
	}
	return nil
}

// New creates a document loader; options are passed to every download
func New(fs afs.Service, options ...storage.Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, options: options}
}

// WithLookup replaces os.Getenv as the source of ${env.KEY} values
func (s *Service) WithLookup(lookup func(key string) string) *Service {
	s.lookup = lookup
	return s
}

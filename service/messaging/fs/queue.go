// Package fs implements messaging.Queue as a journal of JSON files kept on
// any storage supported by afs.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/service/messaging"
)

// MessageState represents the state of a message in the journal
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message implements messaging.Message for the journal queue
type Message[T any] struct {
	MessageID string       `json:"id"`
	Seq       int64        `json:"seq"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// ID returns the message identifier
func (m *Message[T]) ID() string {
	return m.MessageID
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack marks the message completed
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.MessageID)
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.complete(context.Background(), m)
}

// Nack returns the message to pending, or to the dead letter directory once
// retries are exhausted
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %s already processed", m.MessageID)
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	return m.queue.fail(context.Background(), m)
}

// Config holds configuration for the journal queue
type Config struct {
	BasePath      string        `json:"basePath" yaml:"basePath"`
	MaxRetries    int           `json:"maxRetries" yaml:"maxRetries"`
	PollInterval  time.Duration `json:"pollInterval" yaml:"pollInterval"`
	KeepCompleted bool          `json:"keepCompleted" yaml:"keepCompleted"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:      "/tmp/kproc/events",
		MaxRetries:    3,
		PollInterval:  20 * time.Millisecond,
		KeepCompleted: true,
	}
}

// Queue implements a file journal messaging.Queue. Messages are consumed in
// publish order.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	dlqDir        string
	seq           atomic.Int64
	mu            sync.Mutex
}

// NewQueue creates a journal queue rooted at config.BasePath
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	config.BasePath = url.Normalize(config.BasePath, file.Scheme)
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(config.BasePath, "pending"),
		processingDir: url.Join(config.BasePath, "processing"),
		completedDir:  url.Join(config.BasePath, "completed"),
		dlqDir:        url.Join(config.BasePath, "dlq"),
	}
	q.seq.Store(clock.Now().UnixNano())
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.dlqDir} {
		exists, _ := fs.Exists(ctx, dir)
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish appends a message to the pending journal
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		MessageID: idgen.New(),
		Seq:       q.seq.Add(1),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	message.name = filename(message.Seq, message.MessageID)
	return q.write(ctx, url.Join(q.pendingDir, message.name), message)
}

// Consume takes the oldest pending message, polling until one is available
// or ctx is done
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.next(ctx)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

func (q *Queue[T]) next(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	names, err := q.list(ctx, q.pendingDir)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	name := names[0]
	source := url.Join(q.pendingDir, name)
	message, err := q.read(ctx, source)
	if err != nil {
		_ = q.fs.Move(ctx, source, url.Join(q.dlqDir, "invalid-"+name))
		return nil, err
	}
	message.name = name
	message.queue = q
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	if err = q.write(ctx, url.Join(q.processingDir, name), message); err != nil {
		return nil, err
	}
	if err = q.fs.Delete(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to delete pending message %s: %w", name, err)
	}
	return message, nil
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.config.KeepCompleted {
		if err := q.write(ctx, url.Join(q.completedDir, m.name), m); err != nil {
			return err
		}
	}
	return q.fs.Delete(ctx, url.Join(q.processingDir, m.name))
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	dest := url.Join(q.dlqDir, m.name)
	if m.Retries <= q.config.MaxRetries {
		m.State = MessageStatePending
		dest = url.Join(q.pendingDir, m.name)
	}
	if err := q.write(ctx, dest, m); err != nil {
		return err
	}
	return q.fs.Delete(ctx, url.Join(q.processingDir, m.name))
}

// Size returns the number of pending messages
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	names, err := q.list(ctx, q.pendingDir)
	return len(names), err
}

// DLQSize returns the number of dead lettered messages
func (q *Queue[T]) DLQSize(ctx context.Context) (int, error) {
	names, err := q.list(ctx, q.dlqDir)
	return len(names), err
}

// Completed returns completed payloads in publish order
func (q *Queue[T]) Completed(ctx context.Context) ([]*T, error) {
	names, err := q.list(ctx, q.completedDir)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(names))
	for _, name := range names {
		message, err := q.read(ctx, url.Join(q.completedDir, name))
		if err != nil {
			return nil, err
		}
		result = append(result, &message.Data)
	}
	return result, nil
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]string, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			names = append(names, object.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", m.MessageID, err)
	}
	if err = q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", URL, err)
	}
	return nil
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return &message, nil
}

func filename(seq int64, id string) string {
	return fmt.Sprintf("%020d-%s.json", seq, id)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)

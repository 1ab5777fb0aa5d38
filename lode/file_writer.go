package lode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/justapithecus/lode/lode"
)

// FileWriter stores exported files next to a run's records.
type FileWriter interface {
	// PutFile writes a file under the run's files/ prefix.
	// The filename must not contain path separators or "..".
	PutFile(ctx context.Context, filename string, data []byte) error
}

var _ FileWriter = (*LodeClient)(nil)

// PutFile writes data to the Store at the run's Hive path, bypassing the
// Dataset snapshot machinery.
func (c *LodeClient) PutFile(ctx context.Context, filename string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid archive filename %q", filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}
	path := c.buildFilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath computes the Hive-partitioned path for an archived file.
// Format: datasets/<dataset>/partitions/source=<s>/day=<d>/run_id=<r>/files/<filename>
func (c *LodeClient) buildFilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/run_id=%s/files/%s",
		c.config.Dataset,
		c.config.Source,
		c.config.Day,
		c.config.RunID,
		filename,
	)
}

// ArchiveFiles copies local files into the archive under their base names.
// Every file is attempted; failures are aggregated.
func ArchiveFiles(ctx context.Context, w FileWriter, paths ...string) error {
	var result error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := w.PutFile(ctx, filepath.Base(p), data); err != nil {
			result = multierror.Append(result, fmt.Errorf("archiving %s: %w", p, err))
		}
	}
	return result
}

// StubFileWriter records PutFile calls for testing.
type StubFileWriter struct {
	mu    sync.Mutex
	Files map[string][]byte
}

// NewStubFileWriter creates a new stub file writer.
func NewStubFileWriter() *StubFileWriter {
	return &StubFileWriter{Files: make(map[string][]byte)}
}

// PutFile implements FileWriter by recording the call.
func (w *StubFileWriter) PutFile(_ context.Context, filename string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Files[filename] = data
	return nil
}

var _ FileWriter = (*StubFileWriter)(nil)

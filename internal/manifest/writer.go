package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Writer persists documents into one explicit output directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a writer for dir. The directory is created on first write.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("output directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write writes every document exactly once. All documents are staged next to their
// destination first and only renamed into place once every one of them was written;
// a failure while staging leaves the directory untouched.
func (w *Writer) Write(docs []Document) error {
	if err := checkFileNames(docs); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}

	staged := make([]string, 0, len(docs))
	cleanup := func() {
		for _, path := range staged {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				w.logger.Warn("failed to remove staged file", zap.String("path", path), zap.Error(err))
			}
		}
	}

	for _, d := range docs {
		path, err := w.stage(d)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, path)
	}

	for i, d := range docs {
		dest := filepath.Join(w.dir, d.FileName)
		if err := os.Rename(staged[i], dest); err != nil {
			staged = staged[i:]
			cleanup()
			return fmt.Errorf("failed to move %s into place: %w", dest, err)
		}
		w.logger.Debug("Wrote manifest", zap.String("path", dest), zap.Int("bytes", len(d.Data)))
	}

	w.logger.Info("Manifests written",
		zap.String("dir", w.dir),
		zap.Int("files", len(docs)),
	)
	return nil
}

// WriteBundle writes all documents into a single multi-document file.
func (w *Writer) WriteBundle(fileName string, docs []Document) error {
	return w.Write([]Document{{FileName: fileName, Data: Bundle(docs)}})
}

func (w *Writer) stage(d Document) (string, error) {
	f, err := os.CreateTemp(w.dir, "."+d.FileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", d.FileName, err)
	}
	if _, err := f.Write(d.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage %s: %w", d.FileName, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage %s: %w", d.FileName, err)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage %s: %w", d.FileName, err)
	}
	return f.Name(), nil
}

func checkFileNames(docs []Document) error {
	if len(docs) == 0 {
		return errors.New("no documents to write")
	}
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.FileName == "" || filepath.Base(d.FileName) != d.FileName || d.FileName == "." || d.FileName == ".." {
			return fmt.Errorf("invalid output file name %q", d.FileName)
		}
		if seen[d.FileName] {
			return fmt.Errorf("duplicate output file %s", d.FileName)
		}
		seen[d.FileName] = true
	}
	return nil
}

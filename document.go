package jxml

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Encode renders v and writes the document to w. Nothing is written when
// rendering fails.
func (e *Encoder) Encode(w io.Writer, v any) error {
	out, err := e.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("jxml: write document: %w", err)
	}
	return nil
}

// WriteDocument renders v and stores the document at path, replacing any
// existing file.
//
// Rendering happens before the file system is touched, so an unsupported
// value is returned as an error and leaves path as it was. I/O failures are
// logged and reported as false with a nil error. The document is written to
// a temporary file next to path and renamed into place, so readers never see
// a partial document.
func (e *Encoder) WriteDocument(v any, path string) (bool, error) {
	out, err := e.Marshal(v)
	if err != nil {
		return false, err
	}
	if err := writeFileAtomic(path, out); err != nil {
		e.logger.Error("write document", zap.String("path", path), zap.Error(err))
		return false, nil
	}
	e.logger.Debug("document written", zap.String("path", path), zap.Int("bytes", len(out)))
	return true, nil
}

// WriteFile renders v with the default Encoder and stores it at path. Unlike
// WriteDocument, I/O failures are returned.
func WriteFile(path string, v any) error {
	out, err := defaultEncoder.Marshal(v)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, out); err != nil {
		return fmt.Errorf("jxml: write %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Chmod(0o644); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

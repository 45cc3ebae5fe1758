// Package pe provides address translation for raw PE32+ images.
package pe

import (
	"fmt"
	"os"
)

// Reader holds a PE file loaded into memory together with its translator.
type Reader struct {
	translator *Translator
	filepath   string
	filesize   int64
}

// Open reads the whole file and builds a Translator over its bytes.
func Open(filepath string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开PE文件失败: %w", err)
	}

	t, err := NewTranslator(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath, err)
	}

	return &Reader{
		translator: t,
		filepath:   filepath,
		filesize:   int64(len(data)),
	}, nil
}

// Translator returns the translator over the file contents.
func (r *Reader) Translator() *Translator {
	return r.translator
}

// FilePath returns the file path.
func (r *Reader) FilePath() string {
	return r.filepath
}

// FileSize returns the file size in bytes.
func (r *Reader) FileSize() int64 {
	return r.filesize
}

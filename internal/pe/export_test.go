package pe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/PEAddr/internal/pe/petest"
)

func exportImage(names ...uint32) []byte {
	dir := make([]byte, exportDirectorySize)
	binary.LittleEndian.PutUint32(dir[exportNumberOfNames:], uint32(len(names)))
	binary.LittleEndian.PutUint32(dir[exportAddressOfNames:], 0x2040)

	pointers := make([]byte, 4*len(names))
	for i, rva := range names {
		binary.LittleEndian.PutUint32(pointers[4*i:], rva)
	}

	return petest.New(0x180000000).
		Section(".text", 0x1000, 0x1000, 0x1400, 0x1000, 0x60000020).
		Section(".rdata", 0x2000, 0x1000, 0x400, 0x1000, 0x40000040).
		Exports(0x2000, exportDirectorySize).
		Write(0x400, dir).
		Write(0x440, pointers).
		Write(0x480, []byte("Alpha\x00")).
		Write(0x490, []byte("Beta\x00")).
		Bytes()
}

func TestExportedNames(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want []string
	}{
		{
			name: "Named exports",
			buf:  exportImage(0x2080, 0x2090),
			want: []string{"Alpha", "Beta"},
		},
		{
			name: "Unmapped name RVA is skipped",
			buf:  exportImage(0x2080, 0x9000, 0x2090),
			want: []string{"Alpha", "Beta"},
		},
		{
			name: "No export directory",
			buf:  petest.ThreeSectionImage(),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := mustTranslator(t, tt.buf)
			got, err := ExportedNames(tr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportedNamesUnmappedDirectory(t *testing.T) {
	tr := mustTranslator(t, petest.New(0x400000).
		Section(".text", 0x1000, 0x100, 0x400, 0x200, 0).
		Exports(0x8000, 0x28).
		Bytes())

	_, err := ExportedNames(tr)
	require.ErrorIs(t, err, ErrNoEnclosingSection)

	var empty Translator
	_, err = ExportedNames(&empty)
	require.ErrorIs(t, err, ErrNoImage)
}

func TestReadCString(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		offset  FileOffset
		want    string
		wantErr bool
	}{
		{
			name:   "Simple string",
			data:   []byte("Hello\x00World"),
			offset: 0,
			want:   "Hello",
		},
		{
			name:   "String with offset",
			data:   []byte("Hello\x00World\x00"),
			offset: 6,
			want:   "World",
		},
		{
			name:   "Unterminated at end of buffer",
			data:   []byte("Hello\x00World"),
			offset: 6,
			want:   "World",
		},
		{
			name:   "Empty string",
			data:   []byte("\x00"),
			offset: 0,
			want:   "",
		},
		{
			name:    "Offset past end",
			data:    []byte("abc"),
			offset:  3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCString(tt.data, tt.offset)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrTruncated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

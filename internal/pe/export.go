package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Offsets inside IMAGE_EXPORT_DIRECTORY.
const (
	exportDirectorySize   = 40
	exportNumberOfNames   = 24
	exportAddressOfNames  = 32
	maxExportNameLength   = 256
	exportNamePointerSize = 4
)

// ExportedNames lists the named exports of the current image, resolving every
// RVA through the translator. Names whose RVA falls outside all sections are
// skipped.
func ExportedNames(t *Translator) ([]string, error) {
	img, err := t.Image()
	if err != nil {
		return nil, err
	}

	dir, err := img.Directory(DirectoryExport)
	if err != nil {
		return nil, err
	}
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, nil
	}

	dirOffset, err := t.RVAToFileOffset(RVA(dir.VirtualAddress))
	if err != nil {
		return nil, fmt.Errorf("无法定位导出表: %w", err)
	}
	raw, err := img.span(uint64(dirOffset), exportDirectorySize)
	if err != nil {
		return nil, fmt.Errorf("读取导出目录失败: %w", err)
	}

	numberOfNames := binary.LittleEndian.Uint32(raw[exportNumberOfNames:])
	if numberOfNames == 0 {
		return nil, nil
	}
	namesRVA := binary.LittleEndian.Uint32(raw[exportAddressOfNames:])

	namesOffset, err := t.RVAToFileOffset(RVA(namesRVA))
	if err != nil {
		return nil, fmt.Errorf("无法定位导出名称表: %w", err)
	}
	pointers, err := img.span(uint64(namesOffset), uint64(numberOfNames)*exportNamePointerSize)
	if err != nil {
		return nil, fmt.Errorf("读取导出名称指针失败: %w", err)
	}

	exports := make([]string, 0, numberOfNames)
	for i := uint32(0); i < numberOfNames; i++ {
		nameRVA := binary.LittleEndian.Uint32(pointers[i*exportNamePointerSize:])
		nameOffset, err := t.RVAToFileOffset(RVA(nameRVA))
		if err != nil {
			continue
		}
		name, err := readCString(img.Bytes(), nameOffset)
		if err != nil {
			continue
		}
		exports = append(exports, name)
	}

	return exports, nil
}

// readCString reads a null-terminated string starting at offset.
func readCString(data []byte, offset FileOffset) (string, error) {
	if uint64(offset) >= uint64(len(data)) {
		return "", fmt.Errorf("字符串偏移 %s: %w", offset, ErrTruncated)
	}

	rest := data[offset:]
	if len(rest) > maxExportNameLength {
		rest = rest[:maxExportNameLength]
	}
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		rest = rest[:end]
	}
	return string(rest), nil
}

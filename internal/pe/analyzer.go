package pe

import (
	"debug/pe"
	"errors"
	"fmt"
)

// Info summarises the address layout of an image.
type Info struct {
	ImageBase   VirtualAddress
	EntryPoint  RVA
	EntryVA     VirtualAddress
	EntryOffset *FileOffset // nil when the entry point is not backed by file data.
	Sections    []SectionInfo
}

// SectionInfo contains the virtual and on-disk extents of a section.
type SectionInfo struct {
	Name            string
	VirtualAddress  RVA
	VirtualSize     uint32
	RawOffset       FileOffset
	RawSize         uint32
	Characteristics uint32
	Permissions     string
	Entropy         float64
}

// VirtualEnd is one past the last RVA of the section.
func (s SectionInfo) VirtualEnd() uint64 {
	return uint64(s.VirtualAddress) + uint64(s.VirtualSize)
}

// RawEnd is one past the last file offset of the section.
func (s SectionInfo) RawEnd() uint64 {
	return uint64(s.RawOffset) + uint64(s.RawSize)
}

// Summarize collects the image base, entry point and section layout of the
// translator's current image.
func Summarize(t *Translator) (*Info, error) {
	img, err := t.Image()
	if err != nil {
		return nil, err
	}

	base, err := t.ImageBase()
	if err != nil {
		return nil, err
	}
	entry, err := img.EntryPoint()
	if err != nil {
		return nil, err
	}

	info := &Info{
		ImageBase:  base,
		EntryPoint: entry,
		EntryVA:    base + VirtualAddress(entry),
	}

	off, err := t.RVAToFileOffset(entry)
	switch {
	case err == nil:
		info.EntryOffset = &off
	case !errors.Is(err, ErrNoEnclosingSection):
		return nil, fmt.Errorf("定位入口点失败: %w", err)
	}

	sections, err := img.Sections()
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		info.Sections = append(info.Sections, SectionInfo{
			Name:            s.Name,
			VirtualAddress:  RVA(s.VirtualAddress),
			VirtualSize:     s.VirtualSize,
			RawOffset:       FileOffset(s.PointerToRawData),
			RawSize:         s.SizeOfRawData,
			Characteristics: s.Characteristics,
			Permissions:     getSectionPermissions(s.Characteristics),
			Entropy:         img.SectionEntropy(s),
		})
	}

	return info, nil
}

func getSectionPermissions(c uint32) string {
	perms := [3]rune{'-', '-', '-'}

	if c&pe.IMAGE_SCN_MEM_READ != 0 {
		perms[0] = 'R'
	}
	if c&pe.IMAGE_SCN_MEM_WRITE != 0 {
		perms[1] = 'W'
	}
	if c&pe.IMAGE_SCN_MEM_EXECUTE != 0 {
		perms[2] = 'X'
	}

	return string(perms[:])
}

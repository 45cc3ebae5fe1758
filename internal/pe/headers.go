package pe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Header parse errors.
var (
	ErrTruncated        = errors.New("PE数据被截断")
	ErrBadDOSSignature  = errors.New("无效的DOS签名")
	ErrBadNTSignature   = errors.New("无效的PE签名")
	ErrUnsupportedImage = errors.New("不支持的可选头类型 (仅支持PE32+)")
)

// On-disk PE/COFF layout.
const (
	dosSignature      = 0x5A4D     // "MZ"
	ntSignature       = 0x00004550 // "PE\0\0"
	lfanewOffset      = 0x3C
	fileHeaderSize    = 20
	sectionHeaderSize = 40

	optionalHeader32Magic = 0x10B
	optionalHeader64Magic = 0x20B

	// Offsets inside the PE32+ optional header.
	optEntryPointOffset    = 16
	optImageBaseOffset     = 24
	optNumRvaAndSizes      = 108
	optDataDirectoryOffset = 112
	optMinSize             = optDataDirectoryOffset
)

// Data directory indices.
const (
	DirectoryExport = 0
	DirectoryImport = 1
)

// SectionHeader is one entry of the section table.
type SectionHeader struct {
	Name             string
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
	Characteristics  uint32
}

// ContainsRVA reports whether rva lies in [VirtualAddress, VirtualAddress+VirtualSize).
func (s SectionHeader) ContainsRVA(rva RVA) bool {
	start := uint64(s.VirtualAddress)
	return uint64(rva) >= start && uint64(rva) < start+uint64(s.VirtualSize)
}

// ContainsOffset reports whether off lies in [PointerToRawData, PointerToRawData+SizeOfRawData).
func (s SectionHeader) ContainsOffset(off FileOffset) bool {
	start := uint64(s.PointerToRawData)
	return uint64(off) >= start && uint64(off) < start+uint64(s.SizeOfRawData)
}

// DataDirectory is an entry of the optional header's data directory array.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Image is a raw, file-layout PE32+ image. The underlying buffer belongs to
// the caller and is never written.
type Image struct {
	buf []byte
}

// headerView locates the NT headers inside the buffer. It is rebuilt on
// every query.
type headerView struct {
	optOffset    uint64
	optSize      uint16
	numSections  uint16
	sectionTable uint64
	imageBase    uint64
}

// ParseImage wraps buf and checks that its headers and section table are
// readable.
func ParseImage(buf []byte) (*Image, error) {
	img := &Image{buf: buf}
	if _, err := img.headers(); err != nil {
		return nil, err
	}
	return img, nil
}

// Bytes returns the underlying buffer.
func (img *Image) Bytes() []byte {
	return img.buf
}

// Len returns the buffer length in bytes.
func (img *Image) Len() int {
	return len(img.buf)
}

func (img *Image) span(off, n uint64) ([]byte, error) {
	size := uint64(len(img.buf))
	if off > size || size-off < n {
		return nil, fmt.Errorf("读取偏移 0x%X (%d 字节): %w", off, n, ErrTruncated)
	}
	return img.buf[off : off+n], nil
}

func (img *Image) u16(off uint64) (uint16, error) {
	b, err := img.span(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (img *Image) u32(off uint64) (uint32, error) {
	b, err := img.span(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (img *Image) u64(off uint64) (uint64, error) {
	b, err := img.span(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (img *Image) headers() (headerView, error) {
	var h headerView

	magic, err := img.u16(0)
	if err != nil {
		return h, fmt.Errorf("读取DOS头失败: %w", err)
	}
	if magic != dosSignature {
		return h, ErrBadDOSSignature
	}

	lfanew, err := img.u32(lfanewOffset)
	if err != nil {
		return h, fmt.Errorf("读取DOS头失败: %w", err)
	}
	ntOffset := uint64(lfanew)

	sig, err := img.u32(ntOffset)
	if err != nil {
		return h, fmt.Errorf("读取NT头失败: %w", err)
	}
	if sig != ntSignature {
		return h, ErrBadNTSignature
	}

	// COFF file header follows the 4-byte signature.
	fileHeader := ntOffset + 4
	fh, err := img.span(fileHeader, fileHeaderSize)
	if err != nil {
		return h, fmt.Errorf("读取COFF头失败: %w", err)
	}
	h.numSections = binary.LittleEndian.Uint16(fh[2:4])
	h.optSize = binary.LittleEndian.Uint16(fh[16:18])
	h.optOffset = fileHeader + fileHeaderSize

	optMagic, err := img.u16(h.optOffset)
	if err != nil {
		return h, fmt.Errorf("读取可选头失败: %w", err)
	}
	if optMagic != optionalHeader64Magic {
		return h, fmt.Errorf("可选头魔数 0x%X: %w", optMagic, ErrUnsupportedImage)
	}
	h.imageBase, err = img.u64(h.optOffset + optImageBaseOffset)
	if err != nil {
		return h, fmt.Errorf("读取镜像基址失败: %w", err)
	}

	h.sectionTable = h.optOffset + uint64(h.optSize)
	if _, err := img.span(h.sectionTable, uint64(h.numSections)*sectionHeaderSize); err != nil {
		return h, fmt.Errorf("读取节区表失败 (%d 个节区): %w", h.numSections, err)
	}

	return h, nil
}

// section decodes table entry i. The caller has already bounds-checked the
// whole table through headers.
func (img *Image) section(h headerView, i int) SectionHeader {
	base := h.sectionTable + uint64(i)*sectionHeaderSize
	raw := img.buf[base : base+sectionHeaderSize]

	return SectionHeader{
		Name:             strings.TrimRight(string(raw[0:8]), "\x00"),
		VirtualSize:      binary.LittleEndian.Uint32(raw[8:12]),
		VirtualAddress:   binary.LittleEndian.Uint32(raw[12:16]),
		SizeOfRawData:    binary.LittleEndian.Uint32(raw[16:20]),
		PointerToRawData: binary.LittleEndian.Uint32(raw[20:24]),
		Characteristics:  binary.LittleEndian.Uint32(raw[36:40]),
	}
}

// ImageBase returns the preferred load address from the optional header.
func (img *Image) ImageBase() (VirtualAddress, error) {
	h, err := img.headers()
	if err != nil {
		return 0, err
	}
	return VirtualAddress(h.imageBase), nil
}

// EntryPoint returns AddressOfEntryPoint.
func (img *Image) EntryPoint() (RVA, error) {
	h, err := img.headers()
	if err != nil {
		return 0, err
	}
	ep, err := img.u32(h.optOffset + optEntryPointOffset)
	if err != nil {
		return 0, fmt.Errorf("读取入口点失败: %w", err)
	}
	return RVA(ep), nil
}

// NumSections returns NumberOfSections from the file header.
func (img *Image) NumSections() (int, error) {
	h, err := img.headers()
	if err != nil {
		return 0, err
	}
	return int(h.numSections), nil
}

// Section returns section table entry i.
func (img *Image) Section(i int) (SectionHeader, error) {
	h, err := img.headers()
	if err != nil {
		return SectionHeader{}, err
	}
	if i < 0 || i >= int(h.numSections) {
		return SectionHeader{}, fmt.Errorf("节区索引 %d 超出范围 (共 %d 个)", i, h.numSections)
	}
	return img.section(h, i), nil
}

// Sections returns a copy of the section table in table order.
func (img *Image) Sections() ([]SectionHeader, error) {
	h, err := img.headers()
	if err != nil {
		return nil, err
	}
	sections := make([]SectionHeader, 0, h.numSections)
	for i := 0; i < int(h.numSections); i++ {
		sections = append(sections, img.section(h, i))
	}
	return sections, nil
}

// Directory returns data directory entry idx, or a zero entry when the
// optional header does not carry that many directories.
func (img *Image) Directory(idx int) (DataDirectory, error) {
	h, err := img.headers()
	if err != nil {
		return DataDirectory{}, err
	}
	if uint64(h.optSize) < optMinSize {
		return DataDirectory{}, nil
	}
	count, err := img.u32(h.optOffset + optNumRvaAndSizes)
	if err != nil {
		return DataDirectory{}, fmt.Errorf("读取数据目录失败: %w", err)
	}
	entry := uint64(optDataDirectoryOffset) + uint64(idx)*8
	if idx < 0 || uint64(idx) >= uint64(count) || entry+8 > uint64(h.optSize) {
		return DataDirectory{}, nil
	}

	b, err := img.span(h.optOffset+entry, 8)
	if err != nil {
		return DataDirectory{}, fmt.Errorf("读取数据目录失败: %w", err)
	}
	return DataDirectory{
		VirtualAddress: binary.LittleEndian.Uint32(b[0:4]),
		Size:           binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// enclosingSection scans the table in order; the first match wins.
func (img *Image) enclosingSection(rva RVA) (SectionHeader, error) {
	h, err := img.headers()
	if err != nil {
		return SectionHeader{}, err
	}
	for i := 0; i < int(h.numSections); i++ {
		s := img.section(h, i)
		if s.ContainsRVA(rva) {
			return s, nil
		}
	}
	return SectionHeader{}, fmt.Errorf("RVA %s: %w", rva, ErrNoEnclosingSection)
}

// rawSection returns the first section whose on-disk range holds off.
func (img *Image) rawSection(off FileOffset) (SectionHeader, VirtualAddress, error) {
	h, err := img.headers()
	if err != nil {
		return SectionHeader{}, 0, err
	}
	for i := 0; i < int(h.numSections); i++ {
		s := img.section(h, i)
		if s.ContainsOffset(off) {
			return s, VirtualAddress(h.imageBase), nil
		}
	}
	return SectionHeader{}, 0, fmt.Errorf("文件偏移 %s: %w", off, ErrNoEnclosingSection)
}

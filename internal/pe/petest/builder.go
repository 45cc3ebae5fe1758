// Package petest builds synthetic PE32+ images for tests.
package petest

import "encoding/binary"

// Layout of every built image.
const (
	Lfanew             = 0x40
	OptionalHeader     = Lfanew + 4 + 20
	OptionalHeaderSize = 0xF0
	SectionTable       = OptionalHeader + OptionalHeaderSize
	SectionHeaderSize  = 40
	MinSize            = 0x400

	PE32Magic     = 0x10B
	PE32PlusMagic = 0x20B
)

// Section describes one section table entry.
type Section struct {
	Name             string
	VirtualAddress   uint32
	VirtualSize      uint32
	PointerToRawData uint32
	SizeOfRawData    uint32
	Characteristics  uint32
}

type patch struct {
	offset int
	data   []byte
}

// Builder assembles a raw (file-layout) PE image.
type Builder struct {
	imageBase uint64
	entry     uint32
	magic     uint16
	sections  []Section
	exportRVA uint32
	exportLen uint32
	patches   []patch
}

// New returns a builder for a PE32+ image with the given preferred base.
func New(imageBase uint64) *Builder {
	return &Builder{imageBase: imageBase, magic: PE32PlusMagic}
}

func (b *Builder) Section(name string, va, vsize, ptr, rawSize, characteristics uint32) *Builder {
	b.sections = append(b.sections, Section{
		Name:             name,
		VirtualAddress:   va,
		VirtualSize:      vsize,
		PointerToRawData: ptr,
		SizeOfRawData:    rawSize,
		Characteristics:  characteristics,
	})
	return b
}

func (b *Builder) EntryPoint(rva uint32) *Builder {
	b.entry = rva
	return b
}

// Exports sets data directory 0.
func (b *Builder) Exports(rva, size uint32) *Builder {
	b.exportRVA, b.exportLen = rva, size
	return b
}

// OptionalMagic overrides the optional header magic.
func (b *Builder) OptionalMagic(magic uint16) *Builder {
	b.magic = magic
	return b
}

// Write places data at a file offset, growing the image as needed.
func (b *Builder) Write(offset int, data []byte) *Builder {
	b.patches = append(b.patches, patch{offset: offset, data: data})
	return b
}

// Bytes renders the image. The buffer covers the headers and every
// section's raw data.
func (b *Builder) Bytes() []byte {
	size := SectionTable + len(b.sections)*SectionHeaderSize
	if size < MinSize {
		size = MinSize
	}
	for _, s := range b.sections {
		if end := int(s.PointerToRawData + s.SizeOfRawData); end > size {
			size = end
		}
	}
	for _, p := range b.patches {
		if end := p.offset + len(p.data); end > size {
			size = end
		}
	}

	buf := make([]byte, size)
	le := binary.LittleEndian

	copy(buf[0:2], "MZ")
	le.PutUint32(buf[0x3C:], Lfanew)

	copy(buf[Lfanew:], "PE\x00\x00")
	fh := buf[Lfanew+4:]
	le.PutUint16(fh[0:], 0x8664) // AMD64
	le.PutUint16(fh[2:], uint16(len(b.sections)))
	le.PutUint16(fh[16:], OptionalHeaderSize)
	le.PutUint16(fh[18:], 0x0022)

	opt := buf[OptionalHeader : OptionalHeader+OptionalHeaderSize]
	le.PutUint16(opt[0:], b.magic)
	le.PutUint32(opt[16:], b.entry)
	le.PutUint64(opt[24:], b.imageBase)
	le.PutUint32(opt[32:], 0x1000) // SectionAlignment
	le.PutUint32(opt[36:], 0x200)  // FileAlignment
	le.PutUint32(opt[60:], MinSize)
	le.PutUint32(opt[108:], 16)
	le.PutUint32(opt[112:], b.exportRVA)
	le.PutUint32(opt[116:], b.exportLen)

	var sizeOfImage uint32
	for i, s := range b.sections {
		raw := buf[SectionTable+i*SectionHeaderSize:]
		copy(raw[0:8], s.Name)
		le.PutUint32(raw[8:], s.VirtualSize)
		le.PutUint32(raw[12:], s.VirtualAddress)
		le.PutUint32(raw[16:], s.SizeOfRawData)
		le.PutUint32(raw[20:], s.PointerToRawData)
		le.PutUint32(raw[36:], s.Characteristics)
		if end := s.VirtualAddress + s.VirtualSize; end > sizeOfImage {
			sizeOfImage = end
		}
	}
	le.PutUint32(opt[56:], sizeOfImage)

	for _, p := range b.patches {
		copy(buf[p.offset:], p.data)
	}

	return buf
}

// TextImage has a single .text section at RVA 0x1000 (0x500 bytes) stored at
// file offset 0x400, with image base 0x140000000.
func TextImage() []byte {
	return New(0x140000000).
		Section(".text", 0x1000, 0x500, 0x400, 0x500, 0x60000020).
		EntryPoint(0x1010).
		Bytes()
}

// ThreeSectionImage has .text, .rdata and .data with a virtual-only tail on
// .data, image base 0x140000000.
func ThreeSectionImage() []byte {
	return New(0x140000000).
		Section(".text", 0x1000, 0x1800, 0x400, 0x1800, 0x60000020).
		Section(".rdata", 0x3000, 0x0800, 0x1C00, 0x0800, 0x40000040).
		Section(".data", 0x4000, 0x2000, 0x2400, 0x0200, 0xC0000040).
		EntryPoint(0x1000).
		Bytes()
}

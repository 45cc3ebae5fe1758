package pe

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
)

// Translation errors.
var (
	ErrNoImage            = errors.New("未设置镜像缓冲区")
	ErrNoEnclosingSection = errors.New("地址不在任何节区内")
	ErrAddressUnderflow   = errors.New("虚拟地址低于镜像基址")
)

// RVA is an address relative to the image base.
type RVA uint32

// VirtualAddress is an absolute address in the image's preferred address space.
type VirtualAddress uint64

// FileOffset is a byte position in the on-disk file.
type FileOffset uint64

func (r RVA) String() string {
	return fmt.Sprintf("0x%X", uint32(r))
}

func (v VirtualAddress) String() string {
	return fmt.Sprintf("0x%X", uint64(v))
}

func (f FileOffset) String() string {
	return fmt.Sprintf("0x%X", uint64(f))
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger that receives a debug record per translation.
func WithLogger(logger log.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// Translator converts between RVAs, virtual addresses and file offsets of a
// raw PE32+ image using its section table.
//
// The zero value has no image and every query returns ErrNoImage. The image
// may be replaced with SetImageBuffer while other goroutines translate; each
// query sees either the old or the new image, never a mix.
type Translator struct {
	image  atomic.Pointer[Image]
	logger log.Logger
}

// NewTranslator returns a Translator over buf.
func NewTranslator(buf []byte, opts ...Option) (*Translator, error) {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.SetImageBuffer(buf); err != nil {
		return nil, err
	}
	return t, nil
}

// SetImageBuffer installs buf as the current image, replacing any previous
// one. On error the previous image stays in place.
func (t *Translator) SetImageBuffer(buf []byte) error {
	img, err := ParseImage(buf)
	if err != nil {
		return fmt.Errorf("解析PE头失败: %w", err)
	}
	t.image.Store(img)
	level.Debug(t.log()).Log("msg", "image installed", "size", len(buf))
	return nil
}

// Image returns the current image.
func (t *Translator) Image() (*Image, error) {
	img := t.image.Load()
	if img == nil {
		return nil, ErrNoImage
	}
	return img, nil
}

func (t *Translator) log() log.Logger {
	if t.logger == nil {
		return log.NewNopLogger()
	}
	return t.logger
}

// ImageBase returns the image's preferred load address.
func (t *Translator) ImageBase() (VirtualAddress, error) {
	img, err := t.Image()
	if err != nil {
		return 0, err
	}
	return img.ImageBase()
}

// FindEnclosingSection returns the first section, in table order, whose
// virtual range contains rva.
func (t *Translator) FindEnclosingSection(rva RVA) (SectionHeader, error) {
	img, err := t.Image()
	if err != nil {
		return SectionHeader{}, err
	}
	s, err := img.enclosingSection(rva)
	level.Debug(t.log()).Log("msg", "find enclosing section", "rva", rva, "section", s.Name, "err", err)
	return s, err
}

// RVAToFileOffset maps rva to its position in the file.
func (t *Translator) RVAToFileOffset(rva RVA) (FileOffset, error) {
	img, err := t.Image()
	if err != nil {
		return 0, err
	}
	off, err := rvaToOffset(img, rva)
	level.Debug(t.log()).Log("msg", "rva to file offset", "rva", rva, "offset", off, "err", err)
	return off, err
}

func rvaToOffset(img *Image, rva RVA) (FileOffset, error) {
	s, err := img.enclosingSection(rva)
	if err != nil {
		return 0, err
	}
	return FileOffset(uint64(rva) - uint64(s.VirtualAddress) + uint64(s.PointerToRawData)), nil
}

// AddressToMappedOffset maps an absolute virtual address to its position in
// the file.
func (t *Translator) AddressToMappedOffset(va VirtualAddress) (FileOffset, error) {
	img, err := t.Image()
	if err != nil {
		return 0, err
	}
	off, err := addressToOffset(img, va)
	level.Debug(t.log()).Log("msg", "address to mapped offset", "va", va, "offset", off, "err", err)
	return off, err
}

func addressToOffset(img *Image, va VirtualAddress) (FileOffset, error) {
	base, err := img.ImageBase()
	if err != nil {
		return 0, err
	}
	if va < base {
		return 0, fmt.Errorf("地址 %s 低于基址 %s: %w", va, base, ErrAddressUnderflow)
	}
	delta := uint64(va - base)
	if delta > math.MaxUint32 {
		return 0, fmt.Errorf("地址 %s 超出镜像范围: %w", va, ErrNoEnclosingSection)
	}
	return rvaToOffset(img, RVA(delta))
}

// FileOffsetToVirtualAddress maps a file offset to the absolute virtual
// address it is loaded at.
func (t *Translator) FileOffsetToVirtualAddress(off FileOffset) (VirtualAddress, error) {
	img, err := t.Image()
	if err != nil {
		return 0, err
	}
	va, err := offsetToAddress(img, off)
	level.Debug(t.log()).Log("msg", "file offset to virtual address", "offset", off, "va", va, "err", err)
	return va, err
}

func offsetToAddress(img *Image, off FileOffset) (VirtualAddress, error) {
	s, base, err := img.rawSection(off)
	if err != nil {
		return 0, err
	}
	return base + VirtualAddress(uint64(off)-uint64(s.PointerToRawData)+uint64(s.VirtualAddress)), nil
}

// FileOffsetToRVA is FileOffsetToVirtualAddress without the image base.
func (t *Translator) FileOffsetToRVA(off FileOffset) (RVA, error) {
	img, err := t.Image()
	if err != nil {
		return 0, err
	}
	s, _, err := img.rawSection(off)
	if err != nil {
		level.Debug(t.log()).Log("msg", "file offset to rva", "offset", off, "err", err)
		return 0, err
	}
	rva := RVA(uint64(off) - uint64(s.PointerToRawData) + uint64(s.VirtualAddress))
	level.Debug(t.log()).Log("msg", "file offset to rva", "offset", off, "rva", rva)
	return rva, nil
}

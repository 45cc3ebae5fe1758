package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/PEAddr/internal/pe"
	"github.com/ZacharyZcR/PEAddr/internal/pe/petest"
	"github.com/ZacharyZcR/PEAddr/internal/query"
)

func newTestReporter(t *testing.T) (*Reporter, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	r := NewReporter("sample.exe", 10240)
	r.SetOutput(&buf)
	return r, &buf
}

func TestPrintLayout(t *testing.T) {
	tr, err := pe.NewTranslator(petest.ThreeSectionImage())
	require.NoError(t, err)
	info, err := pe.Summarize(tr)
	require.NoError(t, err)

	t.Run("All sections", func(t *testing.T) {
		r, buf := newTestReporter(t)
		r.PrintLayout(info)

		out := buf.String()
		assert.Contains(t, out, "sample.exe")
		assert.Contains(t, out, "10 KiB")
		assert.Contains(t, out, "0x140000000")
		assert.Contains(t, out, "0x1000 (VA 0x140001000)")
		assert.Contains(t, out, "(共 3 个)")
		assert.Contains(t, out, ".rdata")
		assert.Contains(t, out, "0x00001000-0x00002800")
		assert.Contains(t, out, "RW-")
	})

	t.Run("Executable only", func(t *testing.T) {
		r, buf := newTestReporter(t)
		r.SetExecutableOnly(true)
		r.PrintLayout(info)

		out := buf.String()
		assert.Contains(t, out, "(共 1 个)")
		assert.NotContains(t, out, ".rdata")
	})
}

func TestPrintTranslation(t *testing.T) {
	r, buf := newTestReporter(t)

	r.PrintTranslation("VA -> 文件偏移", pe.VirtualAddress(0x140001200), pe.FileOffset(0x600), nil)
	r.PrintTranslation("VA -> 文件偏移", pe.VirtualAddress(0x10), nil, pe.ErrAddressUnderflow)
	r.PrintSection(0x1200, pe.SectionHeader{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x500}, nil)
	r.PrintSection(0x10, pe.SectionHeader{}, pe.ErrNoEnclosingSection)

	out := buf.String()
	assert.Contains(t, out, "0x140001200 -> 0x600")
	assert.Contains(t, out, "✗ "+pe.ErrAddressUnderflow.Error())
	assert.Contains(t, out, ".text [0x00001000, 0x00001500)")
	assert.Contains(t, out, "✗ "+pe.ErrNoEnclosingSection.Error())
}

func TestPrintBatchAndExports(t *testing.T) {
	r, buf := newTestReporter(t)

	r.PrintBatch([]query.Result{
		{Query: query.Query{Kind: query.KindVA, Value: "0x140001200"}, Input: 0x140001200, Output: 0x600},
		{Query: query.Query{Kind: query.KindRVA, Value: "0x10"}, Input: 0x10, Err: errors.New("boom")},
	})
	r.PrintExports([]string{"Alpha", "Beta"})
	r.PrintExports(nil)
	r.PrintElapsed(1500 * time.Microsecond)

	out := buf.String()
	assert.Contains(t, out, "0x140001200")
	assert.Contains(t, out, "0x600")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1. Alpha")
	assert.Contains(t, out, "2. Beta")
	assert.Contains(t, out, "未发现导出")
	assert.Contains(t, out, "1.500 ms")
}

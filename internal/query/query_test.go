package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/PEAddr/internal/pe"
	"github.com/ZacharyZcR/PEAddr/internal/pe/petest"
)

const batch = `
queries:
  - kind: va
    value: 0x140001200
  - kind: offset
    value: "0x600"
  - kind: rva
    value: 1010
  - kind: section
    value: 0x1400
  - kind: va
    value: 0x140000500
  - kind: va
    value: 0x10
`

func TestLoadAndRun(t *testing.T) {
	queries, err := Load(strings.NewReader(batch))
	require.NoError(t, err)
	require.Len(t, queries, 6)
	assert.Equal(t, Query{Kind: KindVA, Value: "0x140001200"}, queries[0])

	tr, err := pe.NewTranslator(petest.TextImage())
	require.NoError(t, err)

	results := Run(tr, queries)
	require.Len(t, results, 6)

	require.NoError(t, results[0].Err)
	assert.Equal(t, uint64(0x600), results[0].Output)

	require.NoError(t, results[1].Err)
	assert.Equal(t, uint64(0x140001200), results[1].Output)

	require.NoError(t, results[2].Err)
	assert.Equal(t, uint64(0x1010), results[2].Input)
	assert.Equal(t, uint64(0x410), results[2].Output)
	assert.Equal(t, ".text", results[2].Section)

	require.NoError(t, results[3].Err)
	assert.Equal(t, ".text", results[3].Section)
	assert.Equal(t, uint64(0x1000), results[3].Output)

	assert.ErrorIs(t, results[4].Err, pe.ErrNoEnclosingSection)
	assert.ErrorIs(t, results[5].Err, pe.ErrAddressUnderflow)
}

func TestRunWithoutImage(t *testing.T) {
	var tr pe.Translator
	results := Run(&tr, []Query{{Kind: KindRVA, Value: "0x1000"}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, pe.ErrNoImage)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "Unknown kind", in: "queries:\n  - kind: phys\n    value: 0x10\n"},
		{name: "Bad value", in: "queries:\n  - kind: rva\n    value: zz\n"},
		{name: "Malformed YAML", in: "queries: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	queries, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x1000", want: 0x1000},
		{in: "0X1a", want: 0x1A},
		{in: "ff", want: 0xFF},
		{in: " 0x140001200 ", want: 0x140001200},
		{in: "", wantErr: true},
		{in: "0xg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRVA("0x100000000")
	assert.Error(t, err)
	rva, err := ParseRVA("0x1200")
	require.NoError(t, err)
	assert.Equal(t, pe.RVA(0x1200), rva)
}

func TestResultString(t *testing.T) {
	tr, err := pe.NewTranslator(petest.TextImage())
	require.NoError(t, err)

	tests := []struct {
		q    Query
		want string
	}{
		{q: Query{Kind: KindVA, Value: "0x140001200"}, want: "文件偏移 0x600"},
		{q: Query{Kind: KindRVA, Value: "0x1200"}, want: "文件偏移 0x600 (.text)"},
		{q: Query{Kind: KindOffset, Value: "0x600"}, want: "VA 0x140001200"},
		{q: Query{Kind: KindSection, Value: "0x1200"}, want: ".text (起始 RVA 0x1000)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.q.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(tr, tt.q).String())
		})
	}

	res := Eval(tr, Query{Kind: KindVA, Value: "0x10"})
	assert.Contains(t, res.String(), pe.ErrAddressUnderflow.Error())
}

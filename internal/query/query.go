// Package query runs batches of address translations described in YAML.
package query

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZacharyZcR/PEAddr/internal/pe"
)

// Kind selects the translation applied to a query value.
type Kind string

const (
	KindRVA     Kind = "rva"     // RVA -> file offset
	KindVA      Kind = "va"      // virtual address -> file offset
	KindOffset  Kind = "offset"  // file offset -> virtual address
	KindSection Kind = "section" // RVA -> enclosing section
)

// Query is one entry of a batch file.
type Query struct {
	Kind  Kind   `yaml:"kind"`
	Value string `yaml:"value"`
}

type batchFile struct {
	Queries []Query `yaml:"queries"`
}

// Result is the outcome of one query. Err is set instead of aborting the batch.
type Result struct {
	Query   Query
	Input   uint64
	Output  uint64
	Section string
	Err     error
}

// Load decodes a batch file:
//
//	queries:
//	  - kind: va
//	    value: 0x140001200
func Load(r io.Reader) ([]Query, error) {
	var f batchFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("解析批量查询文件失败: %w", err)
	}

	for i, q := range f.Queries {
		switch q.Kind {
		case KindRVA, KindVA, KindOffset, KindSection:
		default:
			return nil, fmt.Errorf("第 %d 个查询: 未知类型 %q", i+1, q.Kind)
		}
		if _, err := ParseAddress(q.Value); err != nil {
			return nil, fmt.Errorf("第 %d 个查询: %w", i+1, err)
		}
	}

	return f.Queries, nil
}

// ParseAddress parses a hexadecimal address with or without a 0x prefix.
func ParseAddress(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("地址格式错误: %q (应为十六进制，例如: 0x1000)", s)
	}
	return v, nil
}

// ParseRVA is ParseAddress restricted to 32 bits.
func ParseRVA(s string) (pe.RVA, error) {
	v, err := ParseAddress(s)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("RVA超出32位范围: %s", s)
	}
	return pe.RVA(v), nil
}

// Run evaluates every query against t in order.
func Run(t *pe.Translator, queries []Query) []Result {
	results := make([]Result, 0, len(queries))
	for _, q := range queries {
		results = append(results, Eval(t, q))
	}
	return results
}

// Eval evaluates a single query.
func Eval(t *pe.Translator, q Query) Result {
	res := Result{Query: q}

	input, err := ParseAddress(q.Value)
	if err != nil {
		res.Err = err
		return res
	}
	res.Input = input

	switch q.Kind {
	case KindRVA:
		rva, err := ParseRVA(q.Value)
		if err != nil {
			res.Err = err
			return res
		}
		off, err := t.RVAToFileOffset(rva)
		res.Output, res.Err = uint64(off), err
		if err == nil {
			if s, err := t.FindEnclosingSection(rva); err == nil {
				res.Section = s.Name
			}
		}
	case KindVA:
		off, err := t.AddressToMappedOffset(pe.VirtualAddress(input))
		res.Output, res.Err = uint64(off), err
	case KindOffset:
		va, err := t.FileOffsetToVirtualAddress(pe.FileOffset(input))
		res.Output, res.Err = uint64(va), err
	case KindSection:
		rva, err := ParseRVA(q.Value)
		if err != nil {
			res.Err = err
			return res
		}
		s, err := t.FindEnclosingSection(rva)
		res.Section, res.Output, res.Err = s.Name, uint64(s.VirtualAddress), err
	default:
		res.Err = fmt.Errorf("未知查询类型 %q", q.Kind)
	}

	return res
}

// String renders the outcome of r for display.
func (r Result) String() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	switch r.Query.Kind {
	case KindSection:
		return fmt.Sprintf("%s (起始 RVA 0x%X)", r.Section, r.Output)
	case KindOffset:
		return fmt.Sprintf("VA 0x%X", r.Output)
	case KindRVA:
		return fmt.Sprintf("文件偏移 0x%X (%s)", r.Output, r.Section)
	default:
		return fmt.Sprintf("文件偏移 0x%X", r.Output)
	}
}

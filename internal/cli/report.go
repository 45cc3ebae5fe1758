// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ZacharyZcR/PEAddr/internal/pe"
	"github.com/ZacharyZcR/PEAddr/internal/query"
)

// Reporter formats and prints address layouts and translation results.
type Reporter struct {
	out         io.Writer
	filePath    string
	fileSize    int64
	executeOnly bool
}

// NewReporter creates a reporter writing to stdout.
func NewReporter(filePath string, fileSize int64) *Reporter {
	return &Reporter{out: os.Stdout, filePath: filePath, fileSize: fileSize}
}

// SetOutput redirects the report.
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// SetExecutableOnly limits the section table to executable sections.
func (r *Reporter) SetExecutableOnly(only bool) {
	r.executeOnly = only
}

// PrintLayout prints the header block and the section table.
func (r *Reporter) PrintLayout(info *pe.Info) {
	r.printHeader()
	r.printBasicInfo(info)
	r.printSections(info.Sections)
}

func (r *Reporter) printHeader() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(r.out, "\n╔════════════════════════════════════════╗")
	_, _ = cyan.Fprintln(r.out, "║          PEAddr 地址布局               ║")
	_, _ = cyan.Fprintln(r.out, "╚════════════════════════════════════════╝")
}

func (r *Reporter) printBasicInfo(info *pe.Info) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintln(r.out, "\n【基本信息】")

	fmt.Fprintf(r.out, "  %-20s: %s\n", "文件路径", r.filePath)
	fmt.Fprintf(r.out, "  %-20s: %s\n", "文件大小", humanize.IBytes(uint64(r.fileSize)))
	fmt.Fprintf(r.out, "  %-20s: %s\n", "镜像基址", info.ImageBase)
	fmt.Fprintf(r.out, "  %-20s: %s (VA %s)\n", "入口点", info.EntryPoint, info.EntryVA)

	fmt.Fprintf(r.out, "  %-20s: ", "入口点文件偏移")
	if info.EntryOffset != nil {
		fmt.Fprintln(r.out, info.EntryOffset.String())
	} else {
		gray := color.New(color.FgHiBlack)
		_, _ = gray.Fprintln(r.out, "无 (不在任何节区内)")
	}
}

func (r *Reporter) printSections(sections []pe.SectionInfo) {
	if r.executeOnly {
		var exec []pe.SectionInfo
		for _, s := range sections {
			if strings.Contains(s.Permissions, "X") {
				exec = append(exec, s)
			}
		}
		sections = exec
	}

	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【节区信息】(共 %d 个)\n", len(sections))

	if len(sections) == 0 {
		fmt.Fprintln(r.out, "  未发现节区")
		return
	}

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"名称", "虚拟范围", "虚拟大小", "文件范围", "原始大小", "权限", "熵值"})
	table.SetAutoFormatHeaders(false)
	for _, s := range sections {
		table.Append([]string{
			s.Name,
			fmt.Sprintf("0x%08X-0x%08X", uint32(s.VirtualAddress), s.VirtualEnd()),
			humanize.IBytes(uint64(s.VirtualSize)),
			fmt.Sprintf("0x%08X-0x%08X", uint64(s.RawOffset), s.RawEnd()),
			humanize.IBytes(uint64(s.RawSize)),
			s.Permissions,
			fmt.Sprintf("%.2f", s.Entropy),
		})
	}
	table.Render()
}

// PrintTranslation prints a single conversion, or its failure in red.
func (r *Reporter) PrintTranslation(label string, in, out fmt.Stringer, err error) {
	fmt.Fprintf(r.out, "  %-24s %s -> ", label, in)
	if err != nil {
		red := color.New(color.FgRed)
		_, _ = red.Fprintf(r.out, "✗ %v\n", err)
		return
	}
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(r.out, "%s\n", out)
}

// PrintSection prints the result of an enclosing-section lookup.
func (r *Reporter) PrintSection(rva pe.RVA, s pe.SectionHeader, err error) {
	fmt.Fprintf(r.out, "  %-24s %s -> ", "RVA 所在节区", rva)
	if err != nil {
		red := color.New(color.FgRed)
		_, _ = red.Fprintf(r.out, "✗ %v\n", err)
		return
	}
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(r.out, "%s [0x%08X, 0x%08X)\n",
		s.Name, s.VirtualAddress, uint64(s.VirtualAddress)+uint64(s.VirtualSize))
}

// PrintBatch prints batch query results as a table.
func (r *Reporter) PrintBatch(results []query.Result) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【批量查询】(共 %d 个)\n", len(results))

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"类型", "输入", "结果", "节区", "错误"})
	table.SetAutoFormatHeaders(false)
	for _, res := range results {
		row := []string{string(res.Query.Kind), fmt.Sprintf("0x%X", res.Input), "", res.Section, ""}
		if res.Err != nil {
			row[4] = res.Err.Error()
		} else {
			row[2] = fmt.Sprintf("0x%X", res.Output)
		}
		table.Append(row)
	}
	table.Render()
}

// PrintExports lists exported names.
func (r *Reporter) PrintExports(names []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【导出表】(共 %d 个函数)\n", len(names))

	if len(names) == 0 {
		fmt.Fprintln(r.out, "  未发现导出")
		return
	}

	green := color.New(color.FgGreen)
	for i, name := range names {
		_, _ = green.Fprintf(r.out, "  %3d. %s\n", i+1, name)
	}
}

// PrintElapsed prints the run time.
func (r *Reporter) PrintElapsed(d time.Duration) {
	gray := color.New(color.FgHiBlack)
	_, _ = gray.Fprintf(r.out, "\n耗时: %.3f ms\n", float64(d.Microseconds())/1000)
}

// Package main provides the PEAddr CLI tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-kit/log"

	"github.com/ZacharyZcR/PEAddr/internal/cli"
	"github.com/ZacharyZcR/PEAddr/internal/debugging"
	"github.com/ZacharyZcR/PEAddr/internal/pe"
	"github.com/ZacharyZcR/PEAddr/internal/query"
	"github.com/ZacharyZcR/PEAddr/internal/timer"
)

var (
	// Translation flags.
	rvaFlag     = flag.String("rva", "", "RVA转换为文件偏移（十六进制）")
	vaFlag      = flag.String("va", "", "虚拟地址转换为文件偏移（十六进制）")
	offsetFlag  = flag.String("offset", "", "文件偏移转换为虚拟地址（十六进制）")
	sectionFlag = flag.String("section", "", "查找RVA所在节区（十六进制）")
	batchFile   = flag.String("batch", "", "批量查询文件（YAML）")

	// Report flags.
	showLayout  = flag.Bool("layout", false, "显示地址布局（未指定查询时默认显示）")
	execOnly    = flag.Bool("x", false, "仅显示可执行节区")
	listExports = flag.Bool("exports", false, "列出导出函数名称")

	// Tooling flags.
	debugMode = flag.Bool("d", false, "启用调试模式（输出到调试文件）")
	debugFile = flag.String("debug-file", "debug.txt", "调试输出文件（为空时输出到标准输出）")
	timing    = flag.Bool("t", false, "显示耗时")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(os.Stderr, "\n错误: %v\n\n", err)
		os.Exit(1)
	}
}

func run(filepath string) error {
	sw := timer.New()
	sw.Start()

	logger, closeLog := setupLogger()
	defer closeLog()

	reader, err := pe.Open(filepath, pe.WithLogger(logger))
	if err != nil {
		return err
	}

	reporter := cli.NewReporter(reader.FilePath(), reader.FileSize())
	reporter.SetExecutableOnly(*execOnly)
	t := reader.Translator()

	hasFlagQuery := *rvaFlag != "" || *vaFlag != "" || *offsetFlag != "" || *sectionFlag != ""
	if *showLayout || (!hasFlagQuery && *batchFile == "" && !*listExports) {
		info, err := pe.Summarize(t)
		if err != nil {
			return err
		}
		reporter.PrintLayout(info)
	}

	if hasFlagQuery {
		yellow := color.New(color.FgYellow, color.Bold)
		_, _ = yellow.Println("\n【地址转换】")
		if err := translateFlags(t, reporter); err != nil {
			return err
		}
	}

	if *batchFile != "" {
		if err := runBatch(t, reporter); err != nil {
			return err
		}
	}

	if *listExports {
		names, err := pe.ExportedNames(t)
		if err != nil {
			return err
		}
		reporter.PrintExports(names)
	}

	if *timing {
		reporter.PrintElapsed(sw.Stop())
	}
	return nil
}

func setupLogger() (log.Logger, func()) {
	if !*debugMode {
		return debugging.Disabled(), func() {}
	}

	logger, closer, err := debugging.Enable(*debugFile)
	if err != nil {
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Fprintf(os.Stderr, "⚠️  %v，调试模式未启用\n", err)
		return logger, func() {}
	}

	cyan := color.New(color.FgCyan)
	_, _ = cyan.Println("调试模式已启用")
	return logger, func() { _ = closer.Close() }
}

func translateFlags(t *pe.Translator, reporter *cli.Reporter) error {
	if *rvaFlag != "" {
		rva, err := query.ParseRVA(*rvaFlag)
		if err != nil {
			return err
		}
		off, err := t.RVAToFileOffset(rva)
		reporter.PrintTranslation("RVA -> 文件偏移", rva, off, err)
	}

	if *vaFlag != "" {
		v, err := query.ParseAddress(*vaFlag)
		if err != nil {
			return err
		}
		va := pe.VirtualAddress(v)
		off, err := t.AddressToMappedOffset(va)
		reporter.PrintTranslation("VA -> 文件偏移", va, off, err)
	}

	if *offsetFlag != "" {
		v, err := query.ParseAddress(*offsetFlag)
		if err != nil {
			return err
		}
		off := pe.FileOffset(v)
		va, err := t.FileOffsetToVirtualAddress(off)
		reporter.PrintTranslation("文件偏移 -> VA", off, va, err)
	}

	if *sectionFlag != "" {
		rva, err := query.ParseRVA(*sectionFlag)
		if err != nil {
			return err
		}
		s, err := t.FindEnclosingSection(rva)
		reporter.PrintSection(rva, s, err)
	}

	return nil
}

func runBatch(t *pe.Translator, reporter *cli.Reporter) error {
	f, err := os.Open(*batchFile)
	if err != nil {
		return fmt.Errorf("打开批量查询文件失败: %w", err)
	}
	defer func() { _ = f.Close() }()

	queries, err := query.Load(f)
	if err != nil {
		return err
	}
	reporter.PrintBatch(query.Run(t, queries))
	return nil
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("\nPEAddr - PE32+ 地址转换工具")

	fmt.Println("\n用法:")
	fmt.Println("  peaddr [选项] <PE文件路径>")
	fmt.Println("\n转换选项:")
	fmt.Println("  -rva <地址>       RVA转换为文件偏移")
	fmt.Println("  -va <地址>        虚拟地址转换为文件偏移（减去镜像基址后按RVA处理）")
	fmt.Println("  -offset <偏移>    文件偏移转换为虚拟地址")
	fmt.Println("  -section <地址>   查找RVA所在节区")
	fmt.Println("  -batch <文件>     从YAML文件批量查询")
	fmt.Println("\n显示选项:")
	fmt.Println("  -layout           显示地址布局（未指定查询时默认显示）")
	fmt.Println("  -x                仅显示可执行节区")
	fmt.Println("  -exports          列出导出函数名称")
	fmt.Println("\n其他选项:")
	fmt.Println("  -d                启用调试模式（输出到 -debug-file，默认: debug.txt）")
	fmt.Println("  -t                显示耗时")
	fmt.Println("  -h                显示帮助信息")

	fmt.Println("\n示例:")
	fmt.Println("  # 显示地址布局")
	fmt.Println("  peaddr C:\\Windows\\System32\\notepad.exe")
	fmt.Println("  # 虚拟地址转换为文件偏移")
	fmt.Println("  peaddr -va 0x140001200 app.exe")
	fmt.Println("  # 批量查询")
	fmt.Println("  peaddr -batch queries.yaml app.exe")
	fmt.Println()
}

// Package main provides the PEAddr GUI application.
package main

import (
	"fmt"
	"io"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ZacharyZcR/PEAddr/internal/pe"
	"github.com/ZacharyZcR/PEAddr/internal/query"
)

func main() {
	myApp := app.New()
	myWindow := myApp.NewWindow("PEAddr - PE32+ 地址转换工具")
	myWindow.Resize(fyne.NewSize(720, 420))

	// The translator starts empty; every opened file replaces its image.
	var translator pe.Translator

	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")
	filePathEntry.Disable()

	layoutOutput := widget.NewMultiLineEntry()
	layoutOutput.SetPlaceHolder("节区布局将显示在这里...")
	layoutOutput.Disable()

	statusLabel := widget.NewLabel("就绪")
	resultLabel := widget.NewLabel("")

	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()

			data, err := io.ReadAll(file)
			if err != nil {
				dialog.ShowError(fmt.Errorf("读取文件失败: %w", err), myWindow)
				return
			}
			if err := translator.SetImageBuffer(data); err != nil {
				dialog.ShowError(err, myWindow)
				statusLabel.SetText("加载失败")
				return
			}

			filePathEntry.SetText(file.URI().Path())
			layoutOutput.SetText(describeLayout(&translator))
			statusLabel.SetText(fmt.Sprintf("已加载 %d 字节", len(data)))
		}, myWindow)
	})

	addressEntry := widget.NewEntry()
	addressEntry.SetPlaceHolder("0x140001000")

	convert := func(kind query.Kind) func() {
		return func() {
			if addressEntry.Text == "" {
				dialog.ShowError(fmt.Errorf("请输入地址"), myWindow)
				return
			}
			res := query.Eval(&translator, query.Query{Kind: kind, Value: addressEntry.Text})
			resultLabel.SetText(res.String())
			if res.Err != nil {
				statusLabel.SetText("转换失败")
				return
			}
			statusLabel.SetText("转换完成")
		}
	}

	fileBox := container.NewBorder(nil, nil, nil, fileButton, filePathEntry)

	convertBox := container.NewVBox(
		widget.NewLabel("地址（十六进制）:"),
		addressEntry,
		container.NewGridWithColumns(4,
			widget.NewButton("RVA → 文件偏移", convert(query.KindRVA)),
			widget.NewButton("VA → 文件偏移", convert(query.KindVA)),
			widget.NewButton("文件偏移 → VA", convert(query.KindOffset)),
			widget.NewButton("RVA → 节区", convert(query.KindSection)),
		),
		resultLabel,
	)

	mainContent := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("PE文件路径:"),
			fileBox,
			widget.NewSeparator(),
			convertBox,
			widget.NewSeparator(),
		),
		container.NewVBox(
			widget.NewSeparator(),
			statusLabel,
		),
		nil,
		nil,
		container.NewVScroll(layoutOutput),
	)

	myWindow.SetContent(mainContent)
	myWindow.ShowAndRun()
}

func describeLayout(t *pe.Translator) string {
	info, err := pe.Summarize(t)
	if err != nil {
		return err.Error()
	}

	out := fmt.Sprintf("镜像基址: %s\n入口点: %s (VA %s)\n\n节区信息 (%d 个):\n",
		info.ImageBase, info.EntryPoint, info.EntryVA, len(info.Sections))
	for _, s := range info.Sections {
		out += fmt.Sprintf("  %-8s RVA 0x%08X-0x%08X  文件 0x%08X-0x%08X  %s\n",
			s.Name, uint32(s.VirtualAddress), s.VirtualEnd(), uint64(s.RawOffset), s.RawEnd(), s.Permissions)
	}
	return out
}

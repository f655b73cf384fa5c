package output

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table 简单表格输出
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable 创建表格
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	return &Table{headers: headers, widths: widths}
}

// AddRow 添加行，多余的列被忽略
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	for i, cell := range row {
		if n := utf8.RuneCountInString(cell); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len 数据行数
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) pad(s string, i int) string {
	return s + strings.Repeat(" ", t.widths[i]-utf8.RuneCountInString(s))
}

// Render 渲染表格
func (t *Table) Render() {
	w := Writer()
	header := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		header.Fprint(w, t.pad(h, i)+"  ")
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", t.widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(w, t.pad(cell, i)+"  ")
		}
		fmt.Fprintln(w)
	}
}

// Truncate 截断过长文本
func Truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// Package csvout 把规范化后的记录写成带表头的 CSV 文件。
package csvout

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/infra/fsx"
)

// Header 是固定列顺序，也是消息 payload 的字段名。
var Header = []string{"Rank", "Title", "Gross_USD", "Release_Year"}

// Encode 把 records 按固定列顺序写到 w（含表头）。records 为空时只写表头。
func Encode(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	for _, r := range records {
		row[0] = strconv.Itoa(r.Rank)
		row[1] = r.Title
		row[2] = FormatGross(r.GrossUSD)
		row[3] = strconv.Itoa(r.ReleaseYear)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile 原子写入 path；已存在的文件会被直接覆盖，缺失的父目录会被创建。
func WriteFile(path string, records []domain.Record) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("output path 不能为空")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), buf.Bytes())
}

// FormatGross 输出最短可往返的十进制表示，且总带小数部分（2923710708 -> "2923710708.0"）。
func FormatGross(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

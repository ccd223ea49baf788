package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

// DefaultSelector 定位目标表格（取第一个匹配）。
const DefaultSelector = "table.wikitable"

// MinCells 是一行被接受的最少单元格数；不足的行（合并/不规则行）整行跳过，不做补齐。
const MinCells = 5

// 从合格行中选取的单元格下标：rank / title / gross / year（第 2 列被忽略）。
const (
	colRank  = 0
	colTitle = 2
	colGross = 3
	colYear  = 4
)

// Table 是表格提取结果。
//
// Found=false 表示页面中没有匹配的表格：这不是错误，下游应把它当作空数据集处理。
type Table struct {
	Found   bool
	Headers []string
	Rows    []domain.RawRow
	// Short 是因单元格不足而跳过的行数（仅用于解释，不参与下游）。
	Short int
}

// Parse 在 html 中定位第一个匹配 selector 的表格，并读取表头与数据行。
// selector 为空时使用 DefaultSelector。
//
// 约束：Parse 是纯函数，相同输入 => 相同输出。
func Parse(html []byte, selector string) (Table, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		selector = DefaultSelector
	}
	if len(bytes.TrimSpace(html)) == 0 {
		return Table{Headers: []string{}, Rows: []domain.RawRow{}}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Table{}, err
	}

	out := Table{Headers: []string{}, Rows: []domain.RawRow{}}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return out, nil
	}
	out.Found = true

	// 与页面结构保持一致：tr/th/td 都按后代查找（文档顺序）。
	trs := table.Find("tr")
	trs.First().Find("th").Each(func(_ int, s *goquery.Selection) {
		out.Headers = append(out.Headers, headerLabel(s.Text()))
	})

	if trs.Length() < 2 {
		return out, nil
	}
	trs.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := make([]string, 0, 8)
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if len(cells) < MinCells {
			out.Short++
			return
		}
		out.Rows = append(out.Rows, domain.RawRow{
			Rank:  cells[colRank],
			Title: cells[colTitle],
			Gross: cells[colGross],
			Year:  cells[colYear],
		})
	})
	return out, nil
}

// headerLabel 去掉表头尾部的脚注后缀，例如 "Worldwide gross[2]" -> "Worldwide gross"。
func headerLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	return s
}

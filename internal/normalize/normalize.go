// Package normalize 把抓取到的原始文本字段转换为严格类型的 Record。
//
// 规则全部基于正则“抽取”而不是结构化解析：页面上的脚注、区间、千分位等
// 写法千变万化，抽取能吸收这些差异。宁可丢行（false negative），
// 也不允许得到错误的数值（false positive），因此所有数字规则都只取“第一个”匹配。
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

var (
	footnoteRE   = regexp.MustCompile(`\[.*?\]`)
	nonNumericRE = regexp.MustCompile(`[^0-9.]`)
	digitRunRE   = regexp.MustCompile(`[0-9]+`)
	yearRE       = regexp.MustCompile(`[0-9]{4}`)
)

// Result 是一次 Partition 的结果：有效记录与被拒绝的原始行，二者都保持源顺序。
type Result struct {
	Records []domain.Record
	Rejects []domain.Reject
}

// Title 删除所有 [..] 脚注片段（非贪婪，可出现多次）并去掉首尾空白。永不失败。
func Title(s string) string {
	return strings.TrimSpace(footnoteRE.ReplaceAllString(s, ""))
}

// Gross 解析金额：去掉千分位逗号，再去掉所有非数字/非小数点字符后按浮点数解析。
// 不含任何数字时返回 false（而不是 0）。
func Gross(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = nonNumericRE.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// 例如 "1.2.3"，或超出 float64 范围。
		return 0, false
	}
	return v, true
}

// Year 取最左边的 4 位连续数字作为年份（即使它位于更长的数字段内，例如 "20091" -> 2009）。
func Year(s string) (int, bool) {
	m := yearRE.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// Rank 取第一个连续数字段作为名次。
func Rank(s string) (int, bool) {
	run := digitRunRE.FindString(s)
	if run == "" {
		return 0, false
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Row 把一条 RawRow 转为 Record。
// reasons 非空表示该行无效，此时返回的 Record 不可使用。
func Row(r domain.RawRow) (domain.Record, []string) {
	var reasons []string

	rank, ok := Rank(r.Rank)
	if !ok {
		reasons = append(reasons, domain.RejectRankMissing)
	}
	gross, ok := Gross(r.Gross)
	if !ok {
		reasons = append(reasons, domain.RejectGrossMissing)
	}
	year, ok := Year(r.Year)
	if !ok {
		reasons = append(reasons, domain.RejectYearMissing)
	}
	if len(reasons) > 0 {
		return domain.Record{}, reasons
	}

	return domain.Record{
		Rank:        rank,
		Title:       Title(r.Title),
		GrossUSD:    gross,
		ReleaseYear: year,
	}, nil
}

// Partition 是稳定过滤：保留有效行、收集无效行，不排序、不去重。
// 对同一输入多次调用得到相同结果。
func Partition(rows []domain.RawRow) Result {
	res := Result{
		Records: make([]domain.Record, 0, len(rows)),
		Rejects: []domain.Reject{},
	}
	for i, r := range rows {
		rec, reasons := Row(r)
		if len(reasons) > 0 {
			res.Rejects = append(res.Rejects, domain.Reject{Index: i, Row: r, Reasons: reasons})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

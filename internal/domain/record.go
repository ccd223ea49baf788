package domain

// RawRow 是从表格一行中按固定位置（第 1/3/4/5 个单元格）选出的四个原始文本字段。
// 不做任何类型保证：可能包含脚注 [..]、千分位、货币符号或多余的说明文字。
type RawRow struct {
	Rank  string `json:"rank_raw"`
	Title string `json:"title_raw"`
	Gross string `json:"gross_raw"`
	Year  string `json:"year_raw"`
}

// Record 是规范化之后的输出单元。
//
// 不变量：四个字段全部解析成功才会构造 Record；不存在“部分字段为空”的 Record。
// Record 是值类型，构造后不再修改；writer 与 publisher 各自只读消费。
type Record struct {
	Rank        int     `json:"rank"`
	Title       string  `json:"title"`
	GrossUSD    float64 `json:"gross_usd"`
	ReleaseYear int     `json:"release_year"`
}

const (
	RejectRankMissing  = "rank_missing"
	RejectGrossMissing = "gross_missing"
	RejectYearMissing  = "year_missing"
)

// Reject 记录一条被丢弃的原始行以及原因（按 rank/gross/year 的固定顺序）。
type Reject struct {
	Index   int      `json:"index"` // 在 extractor 输出中的下标（0-based）
	Row     RawRow   `json:"row"`
	Reasons []string `json:"reasons"`
}

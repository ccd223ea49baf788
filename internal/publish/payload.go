package publish

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Payload 是消息体的字段映射；字段名与 CSV 表头一致。
type Payload struct {
	Rank        int    `json:"Rank" msgpack:"Rank"`
	Title       string `json:"Title" msgpack:"Title"`
	GrossUSD    Amount `json:"Gross_USD" msgpack:"Gross_USD"`
	ReleaseYear int    `json:"Release_Year" msgpack:"Release_Year"`
}

// Amount 是美元金额。JSON 中总带小数部分（2923710708 -> 2923710708.0），与 CSV 的 Gross_USD 列一致。
type Amount float64

func (a Amount) MarshalJSON() ([]byte, error) {
	v := float64(a)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("金额无法编码为 JSON：%v", v)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

func PayloadOf(r domain.Record) Payload {
	return Payload{
		Rank:        r.Rank,
		Title:       r.Title,
		GrossUSD:    Amount(r.GrossUSD),
		ReleaseYear: r.ReleaseYear,
	}
}

// Encode 按 encoding 序列化一条记录；encoding 为空时使用 JSON。
func Encode(encoding string, r domain.Record) ([]byte, error) {
	p := PayloadOf(r)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingJSON:
		return json.Marshal(p)
	case EncodingMsgpack:
		return msgpack.Marshal(p)
	default:
		return nil, fmt.Errorf("未知 encoding：%q", encoding)
	}
}

// ValidEncoding 报告 encoding 是否受支持（空串视为默认 JSON）。
func ValidEncoding(encoding string) bool {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingJSON, EncodingMsgpack:
		return true
	}
	return false
}

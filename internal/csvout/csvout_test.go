package csvout

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
)

func TestEncode_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []domain.Record{
		{Rank: 1, Title: "Avatar", GrossUSD: 2923710708, ReleaseYear: 2009},
		{Rank: 12, Title: `Frozen II, "the sequel"`, GrossUSD: 1450026933.5, ReleaseYear: 2019},
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := "Rank,Title,Gross_USD,Release_Year\n" +
		"1,Avatar,2923710708.0,2009\n" +
		"12,\"Frozen II, \"\"the sequel\"\"\",1450026933.5,2019\n"
	if buf.String() != want {
		t.Fatalf("CSV 不符合预期：\ngot=%q\nwant=%q", buf.String(), want)
	}
}

func TestWriteFile_EmptyWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned_data.csv")
	if err := WriteFile(path, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if string(b) != "Rank,Title,Gross_USD,Release_Year\n" {
		t.Fatalf("空集合应只输出表头：%q", string(b))
	}
}

func TestWriteFile_OverwritesAndLineCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cleaned_data.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("stale\nstale\nstale\n"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	recs := make([]domain.Record, 500)
	for i := range recs {
		recs[i] = domain.Record{Rank: i + 1, Title: fmt.Sprintf("Film %d", i+1), GrossUSD: float64(1000 + i), ReleaseYear: 2000}
	}
	if err := WriteFile(path, recs); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if len(lines) != 501 {
		t.Fatalf("期望 501 行（表头 + 500），实际 %d", len(lines))
	}
	if strings.Contains(string(b), "stale") {
		t.Fatalf("旧内容未被覆盖")
	}
}

func TestWriteFile_EmptyPath(t *testing.T) {
	if err := WriteFile(" ", nil); err == nil {
		t.Fatalf("空路径应报错")
	}
}

func TestFormatGross(t *testing.T) {
	cases := map[float64]string{
		2923710708: "2923710708.0",
		0:          "0.0",
		1234.56:    "1234.56",
		0.5:        "0.5",
	}
	for in, want := range cases {
		if got := FormatGross(in); got != want {
			t.Fatalf("FormatGross(%v)：期望 %q，实际 %q", in, want, got)
		}
	}
}

package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/infra/fsx"
)

const (
	pageFile   = "page.html"
	reportFile = "report.json"
)

// ErrDisabled 表示未配置 cache 目录。
var ErrDisabled = errors.New("cache: disabled")

// Store 提供 <cache_dir>/ 下的页面快照与运行报告读写。
//
// 约束：
// - Dir 为空表示禁用：写入直接返回 ErrDisabled，读取视为未命中
// - 只保留最近一次运行的数据（覆盖写）
type Store struct {
	Dir string
}

func New(dir string) Store {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Store{}
	}
	return Store{Dir: filepath.Clean(dir)}
}

func (s Store) Enabled() bool { return s.Dir != "" }

// PagePath 返回页面快照的路径；禁用时返回空串。
func (s Store) PagePath() string {
	if !s.Enabled() {
		return ""
	}
	return filepath.Join(s.Dir, pageFile)
}

// ReportPath 返回 report.json 的路径；禁用时返回空串。
func (s Store) ReportPath() string {
	if !s.Enabled() {
		return ""
	}
	return filepath.Join(s.Dir, reportFile)
}

// ReadPage 读取页面快照；文件不存在时 ok=false 且 err=nil。
func (s Store) ReadPage() ([]byte, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	b, err := os.ReadFile(s.PagePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(html []byte) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return fsx.WriteFileAtomicReplace(s.Dir, pageFile, html)
}

func (s Store) WriteReport(b []byte) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return fsx.WriteFileAtomicReplace(s.Dir, reportFile, b)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/extract"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/publish"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是 cwd 下自动发现的配置文件名（可选）。
const FileName = "boxoffice.json"

const (
	DefaultURL      = "https://en.wikipedia.org/wiki/List_of_highest-grossing_films"
	DefaultOutput   = "cleaned_data.csv"
	DefaultTopic    = "bonus_22B22B1510"
	DefaultSink     = "kafka"
	DefaultTimeout  = 10 * time.Second
	DefaultLogLevel = "info"
	maxTimeoutSec   = 120
)

// CLIArgs 是 CLI 暴露的入口参数，并保留“是否显式指定”的信息，
// 保证 --strict=false 能覆盖配置文件中的 strict=true。
type CLIArgs struct {
	ConfigPath string

	URL     string
	Output  string
	Topic   string
	Sink    string
	Brokers []string

	Replay bool

	Strict    bool
	StrictSet bool
}

// FileConfig 对应 boxoffice.json 的解析结构。
type FileConfig struct {
	URL           string         `json:"url"`
	Output        string         `json:"output"`
	TimeoutSec    int            `json:"timeout_sec"`
	TableSelector string         `json:"table_selector"`
	Proxy         *ProxyConfig   `json:"proxy"`
	CacheDir      string         `json:"cache_dir"`
	Strict        *bool          `json:"strict"`
	Publish       *PublishConfig `json:"publish"`
	Log           *LogConfig     `json:"log"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type PublishConfig struct {
	Sink     string   `json:"sink"`
	Topic    string   `json:"topic"`
	Brokers  []string `json:"brokers"`
	Encoding string   `json:"encoding"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（各阶段直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	URL           string
	Output        string // 绝对路径
	Timeout       time.Duration
	TableSelector string
	ProxyURL      string

	CacheDir string // 绝对路径；空表示禁用
	Replay   bool
	Strict   bool

	Sink     string
	Topic    string
	Brokers  []string
	Encoding string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试读取 <cwd>/boxoffice.json（可选，不存在则全部走默认值）
//
// 覆盖优先级（固定）：CLI > config > 默认值。
// 相对路径（output/cache_dir）以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	pageURL := pick(cli.URL, fc.URL, DefaultURL)
	if err := validateHTTPURL(pageURL); err != nil {
		return EffectiveConfig{}, invalid("url 无效：%v", err)
	}

	output := absCleanFrom(cwdAbs, pick(cli.Output, fc.Output, DefaultOutput))

	timeout := DefaultTimeout
	if fc.TimeoutSec != 0 {
		if fc.TimeoutSec < 1 || fc.TimeoutSec > maxTimeoutSec {
			return EffectiveConfig{}, invalid("timeout_sec 必须在 [1, %d] 范围内，实际是 %d", maxTimeoutSec, fc.TimeoutSec)
		}
		timeout = time.Duration(fc.TimeoutSec) * time.Second
	}

	selector := strings.TrimSpace(fc.TableSelector)
	if selector == "" {
		selector = extract.DefaultSelector
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return EffectiveConfig{}, invalid("table_selector 无效：%v", err)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if err := validateHTTPURL(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%v", err)
		}
	}

	cacheDir := ""
	if d := strings.TrimSpace(fc.CacheDir); d != "" {
		cacheDir = absCleanFrom(cwdAbs, d)
	}
	if cli.Replay && cacheDir == "" {
		return EffectiveConfig{}, invalid("--replay 需要配置 cache_dir")
	}

	// strict：CLI > config > 默认 false
	strict := false
	if cli.StrictSet {
		strict = cli.Strict
	} else if fc.Strict != nil {
		strict = *fc.Strict
	}

	pc := PublishConfig{}
	if fc.Publish != nil {
		pc = *fc.Publish
	}
	sink := strings.ToLower(pick(cli.Sink, pc.Sink, DefaultSink))
	if _, ok := publish.DefaultRegistry().Get(sink); !ok {
		return EffectiveConfig{}, invalid("publish.sink 只能是 kafka 或 nats，实际是 %q", sink)
	}
	topic := pick(cli.Topic, pc.Topic, DefaultTopic)

	brokers := cleanList(cli.Brokers)
	if len(brokers) == 0 {
		brokers = cleanList(pc.Brokers)
	}
	if len(brokers) == 0 {
		brokers = []string{defaultBroker(sink)}
	}

	encoding := strings.ToLower(strings.TrimSpace(pc.Encoding))
	if encoding == "" {
		encoding = publish.EncodingJSON
	}
	if !publish.ValidEncoding(encoding) {
		return EffectiveConfig{}, invalid("publish.encoding 只能是 json 或 msgpack，实际是 %q", pc.Encoding)
	}

	lc := LogConfig{}
	if fc.Log != nil {
		lc = *fc.Log
	}
	level := strings.ToLower(pick("", lc.Level, DefaultLogLevel))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid("log.level 只能是 debug/info/warn/error，实际是 %q", lc.Level)
	}
	format := strings.ToLower(pick("", lc.Format, "console"))
	if format != "console" && format != "json" {
		return EffectiveConfig{}, invalid("log.format 只能是 console 或 json，实际是 %q", lc.Format)
	}

	return EffectiveConfig{
		URL:           pageURL,
		Output:        output,
		Timeout:       timeout,
		TableSelector: selector,
		ProxyURL:      proxyURL,
		CacheDir:      cacheDir,
		Replay:        cli.Replay,
		Strict:        strict,
		Sink:          sink,
		Topic:         topic,
		Brokers:       brokers,
		Encoding:      encoding,
		LogLevel:      level,
		LogFormat:     format,
	}, nil
}

func defaultBroker(sink string) string {
	if sink == "nats" {
		return publish.DefaultNATSURL
	}
	return publish.DefaultKafkaBroker
}

// pick 返回第一个非空（trim 后）的值。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

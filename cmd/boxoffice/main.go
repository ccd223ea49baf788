package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/app/run"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/config"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/domain"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/infra/cache"
	"github.com/Batyrbek001/Data-Collection-Bonus-Task-SIS3/internal/publish"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	// 配置加载前先用默认 logger，保证配置错误也有统一格式的输出。
	setupLogger(os.Stdout, config.DefaultLogLevel, "console")

	cwd, err := os.Getwd()
	if err != nil {
		log.Error().Err(err).Msg("读取当前目录失败")
		return 1
	}

	eff, err := config.LoadEffective(cwd, ra.CLIArgs)
	if err != nil {
		log.Error().Str("error_code", config.Code(err)).Err(err).Msg("配置无效")
		return 1
	}
	setupLogger(os.Stdout, eff.LogLevel, eff.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rr := run.Execute(ctx, eff, publish.DefaultRegistry(), newLogObserver(log.Logger))

	if store := cache.New(eff.CacheDir); store.Enabled() {
		if err := writeReport(store, rr); err != nil {
			log.Warn().Err(err).Str("path", store.ReportPath()).Msg("写入 report.json 失败")
		} else {
			log.Debug().Str("path", store.ReportPath()).Msg("report 已写入")
		}
	}

	emitSummary(log.Logger, rr)
	return exitCode(eff.Strict, rr)
}

// exitCode：非 strict 模式下只要流程跑完就返回 0（降级也算完成）；
// strict 模式下任一阶段 failed 或没有任何合格记录都返回 1。
func exitCode(strict bool, rr domain.RunReport) int {
	if !strict {
		return 0
	}
	if rr.Failed() || rr.Summary.Valid == 0 {
		return 1
	}
	return 0
}

type runArgs struct {
	config.CLIArgs
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, value, hasValue := strings.Cut(a, "=")

		switch name {
		case "--config", "--url", "--out", "--topic", "--broker", "--sink":
			if !hasValue {
				if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
					return runArgs{}, fmt.Errorf("%s 需要一个值", name)
				}
				i++
				value = args[i]
			}
			if strings.TrimSpace(value) == "" {
				return runArgs{}, fmt.Errorf("%s 不能为空", name)
			}
			switch name {
			case "--config":
				ra.ConfigPath = value
			case "--url":
				ra.URL = value
			case "--out":
				ra.Output = value
			case "--topic":
				ra.Topic = value
			case "--broker":
				ra.Brokers = append(ra.Brokers, value)
			case "--sink":
				ra.Sink = value
			}
		case "--replay":
			if hasValue {
				return runArgs{}, fmt.Errorf("--replay 不接受取值")
			}
			ra.Replay = true
		case "--strict":
			ra.Strict = true
			if hasValue {
				switch value {
				case "true":
				case "false":
					ra.Strict = false
				default:
					return runArgs{}, fmt.Errorf("--strict 只能是 true 或 false，实际是 %q", value)
				}
			}
			ra.StrictSet = true
		default:
			if strings.HasPrefix(a, "-") {
				return runArgs{}, fmt.Errorf("未知参数 %q", a)
			}
			return runArgs{}, fmt.Errorf("多余的参数 %q", a)
		}
	}

	if ra.Sink != "" {
		switch strings.ToLower(ra.Sink) {
		case "kafka", "nats":
			// ok
		default:
			return runArgs{}, fmt.Errorf("--sink 只能是 kafka 或 nats，实际是 %q", ra.Sink)
		}
	}

	return ra, nil
}

// setupLogger 配置全局 zerolog logger：console（人读）或 json（每行一个事件）。
func setupLogger(w io.Writer, level, format string) {
	var writer = w
	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)
}

func writeReport(store cache.Store, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return store.WriteReport(b)
}

func emitSummary(l zerolog.Logger, rr domain.RunReport) {
	ev := l.Info()
	if rr.Summary.Status != domain.StatusOK {
		ev = l.Warn()
	}
	ev.Str("status", rr.Summary.Status).
		Int("extracted", rr.Summary.Extracted).
		Int("valid", rr.Summary.Valid).
		Int("rejected", rr.Summary.Rejected).
		Int("published", rr.Summary.Published).
		Str("output", rr.Output).
		Dur("elapsed", rr.FinishedAt.Sub(rr.StartedAt)).
		Msg("完成")
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  boxoffice run [--config F] [--url U] [--out F] [--topic T] [--broker B]... [--sink kafka|nats] [--replay] [--strict[=true|false]]

命令：
  run    抓取票房榜单，清洗后写入 CSV 并逐条发布到 topic

使用 "boxoffice run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  boxoffice run [flags]

参数：
  --config F   配置文件（必须存在）；未指定时读取 ./boxoffice.json（可选）
  --url U      来源页面（默认 Wikipedia 票房榜）
  --out F      输出 CSV（默认 cleaned_data.csv，已存在则覆盖）
  --topic T    发布 topic（默认 bonus_22B22B1510）
  --broker B   broker 地址，可重复（kafka 默认 localhost:9092）
  --sink S     kafka|nats（默认 kafka）
  --replay     不访问网络，读取 cache_dir 中上次保存的页面快照
  --strict     任一阶段失败或没有合格记录时以 1 退出；支持 --strict=false 覆盖配置
  -h, --help   显示帮助
`)
}

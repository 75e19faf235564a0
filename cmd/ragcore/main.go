// =============================================================================
// ragcore 命令行入口
// =============================================================================
// 对本地文本文件执行分块、向量化、索引与检索
//
// 使用方法:
//
//	ragcore split  --file doc.txt                       # 输出分块结果
//	ragcore ingest --file a.txt --file b.txt            # 导入并输出索引统计
//	ragcore search --file doc.txt --query "关键词"       # 导入后检索
//	ragcore version                                     # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/ragcore/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "split":
		err = runSplit(os.Args[2:], os.Stdin, os.Stdout)
	case "ingest":
		err = runIngest(os.Args[2:], os.Stdin, os.Stdout)
	case "search":
		err = runSearch(os.Args[2:], os.Stdin, os.Stdout)
	case "version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ragcore %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ragcore - multilingual chunking, embedding and hybrid search

Usage:
  ragcore <command> [options]

Commands:
  split     Split text into chunks and print them as JSON
  ingest    Index text files and print index statistics
  search    Index text files and run a query against them
  version   Show version information
  help      Show this help message

Common options:
  --config <path>     Path to configuration file (YAML)
  --file <path>       Input text file, "-" for stdin (repeatable)
  --metrics           Print collected Prometheus metrics to stderr on exit

Options for 'split':
  --doc <id>          Document id used for chunk ids
  --overlap           Prefix each chunk with the tail of the previous one

Options for 'search':
  --query <text>      Query text (required)
  --k <n>             Number of results (default: search.top_k)
  --mode <mode>       hybrid | vector | keyword (default: hybrid)

Examples:
  ragcore split --file article.txt
  ragcore ingest --config ragcore.yaml --file a.txt --file b.txt
  ragcore search --file article.txt --query "mammals" --k 3
  RAGCORE_EMBEDDING_PROVIDER=openai RAGCORE_EMBEDDING_API_KEY=sk-... ragcore search --file a.txt --query "..."`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: true,
	}

	var opts []zap.Option
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

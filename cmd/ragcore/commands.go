package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/rag"
)

// fileList 可重复的 --file 参数
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// commonFlags 各子命令共用的参数
type commonFlags struct {
	configPath  string
	files       fileList
	dumpMetrics bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config file")
	fs.Var(&c.files, "file", `Input text file, "-" for stdin (repeatable)`)
	fs.BoolVar(&c.dumpMetrics, "metrics", false, "Print collected metrics to stderr on exit")
}

// setup 加载配置、初始化日志并组装组件
func (c *commonFlags) setup() (*app, error) {
	if len(c.files) == 0 {
		return nil, errors.New("at least one --file is required")
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	logger := initLogger(cfg.Log)
	logger.Debug("ragcore starting",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	return newApp(cfg, logger)
}

func (c *commonFlags) finish(a *app) {
	if c.dumpMetrics {
		if err := a.writeMetrics(os.Stderr); err != nil {
			a.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	a.close()
	_ = a.logger.Sync()
}

// =============================================================================
// ✂️ split 命令
// =============================================================================

func runSplit(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	docID := fs.String("doc", "", "Document id used for chunk ids")
	overlap := fs.Bool("overlap", false, "Prefix each chunk with the tail of the previous one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := common.setup()
	if err != nil {
		return err
	}
	defer common.finish(a)

	type splitOutput struct {
		File   string      `json:"file"`
		Chunks []rag.Chunk `json:"chunks"`
	}

	var out []splitOutput
	for _, path := range common.files {
		text, err := readInput(path, stdin)
		if err != nil {
			return err
		}

		id := *docID
		if id == "" {
			id = documentID(path)
		}

		split := a.splitter.ChunksWithMetadata
		if *overlap {
			split = a.splitter.OverlapChunksWithMetadata
		}
		chunks, err := split(text, id)
		if err != nil {
			return fmt.Errorf("split %s: %w", path, err)
		}
		out = append(out, splitOutput{File: path, Chunks: chunks})
	}

	return writeJSON(stdout, out)
}

// =============================================================================
// 📥 ingest 命令
// =============================================================================

func runIngest(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	collection := fs.String("collection", "", "Target collection (default: search.collection)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := common.setup()
	if err != nil {
		return err
	}
	defer common.finish(a)

	if _, err := ingestFiles(context.Background(), a, collectionOr(*collection, a), common.files, stdin); err != nil {
		return err
	}
	return writeJSON(stdout, a.pipeline.Stats())
}

// =============================================================================
// 🔍 search 命令
// =============================================================================

func runSearch(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	query := fs.String("query", "", "Query text")
	k := fs.Int("k", 0, "Number of results")
	mode := fs.String("mode", rag.PassHybrid, "hybrid | vector | keyword")
	collection := fs.String("collection", "", "Target collection (default: search.collection)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*query) == "" {
		return errors.New("--query is required")
	}

	a, err := common.setup()
	if err != nil {
		return err
	}
	defer common.finish(a)

	ctx := context.Background()
	col := collectionOr(*collection, a)
	if _, err := ingestFiles(ctx, a, col, common.files, stdin); err != nil {
		return err
	}

	topK := *k
	if topK <= 0 {
		topK = a.cfg.Search.TopK
	}

	ranker := a.pipeline.Ranker()
	switch *mode {
	case rag.PassHybrid:
		results, err := a.pipeline.HybridSearch(ctx, col, *query, topK, nil)
		if err != nil {
			return err
		}
		return writeJSON(stdout, results)
	case rag.PassVector:
		results, err := ranker.VectorSearch(ctx, col, *query, topK, nil)
		if err != nil {
			return err
		}
		return writeJSON(stdout, results)
	case rag.PassKeyword:
		results, err := ranker.KeywordSearch(ctx, col, *query, topK, nil)
		if err != nil {
			return err
		}
		return writeJSON(stdout, results)
	default:
		return fmt.Errorf("unknown search mode %q", *mode)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func ingestFiles(ctx context.Context, a *app, collection string, files []string, stdin io.Reader) (int, error) {
	total := 0
	for _, path := range files {
		text, err := readInput(path, stdin)
		if err != nil {
			return total, err
		}
		ids, err := a.pipeline.IngestText(ctx, collection, documentID(path), text, map[string]any{"source": path})
		if err != nil {
			return total, fmt.Errorf("ingest %s: %w", path, err)
		}
		total += len(ids)
	}

	a.logger.Info("files ingested",
		zap.String("collection", collection),
		zap.Int("files", len(files)),
		zap.Int("chunks", total))
	return total, nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// documentID 以文件名（去掉扩展名）作为文档 id
func documentID(path string) string {
	if path == "-" {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func collectionOr(name string, a *app) string {
	if name != "" {
		return name
	}
	return a.cfg.Search.Collection
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// =============================================================================
// FetchFlow 主入口
// =============================================================================
// 命令行下载工具，驱动抓取引擎完成文件/URL 下载
//
// 使用方法:
//
//	fetchflow fetch <url-or-path>...            # 下载一个或多个资源
//	fetchflow fetch --config fetchflow.yaml --out ./downloads <url>...
//	fetchflow history                           # 查看抓取日志
//	fetchflow version                           # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gorm.io/gorm"

	"github.com/BaSui01/fetchflow/config"
	"github.com/BaSui01/fetchflow/engine"
	"github.com/BaSui01/fetchflow/journal"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/provider/blobprov"
	"github.com/BaSui01/fetchflow/provider/cacheprov"
	"github.com/BaSui01/fetchflow/provider/fsprov"
	"github.com/BaSui01/fetchflow/provider/httpprov"
	"github.com/BaSui01/fetchflow/telemetry"
	"github.com/BaSui01/fetchflow/types"
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
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fetch":
		runFetch(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// ⬇️ fetch 命令
// =============================================================================

func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	outDir := fs.String("out", ".", "Output directory")
	chunkSize := fs.Int("chunk", 256*1024, "Chunk buffer size in bytes")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "fetch: at least one url or path is required")
		os.Exit(1)
	}

	// 加载配置
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting fetchflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// 初始化遥测
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		otelProviders.Shutdown(ctx)
	}()

	// 构建 IO 后端
	prov, cleanup, err := buildProvider(cfg, paths, logger)
	if err != nil {
		logger.Fatal("failed to build provider", zap.Error(err))
	}
	defer cleanup()

	// 可选的抓取日志
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		db, err := gorm.Open(sqlite.Open(cfg.Journal.Path), &gorm.Config{})
		if err != nil {
			logger.Warn("journal database not available", zap.Error(err))
		} else if jnl, err = journal.New(db, logger); err != nil {
			logger.Warn("journal setup failed", zap.Error(err))
			jnl = nil
		}
	}

	// 创建引擎并执行下载
	e, err := engine.New(cfg.Engine, prov, engine.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create engine", zap.Error(err))
	}
	defer e.Close()

	if err := fetchAll(e, jnl, paths, *outDir, *chunkSize, logger); err != nil {
		logger.Fatal("fetch failed", zap.Error(err))
	}
}

// buildProvider 根据配置与目标路径选择 IO 后端
func buildProvider(cfg *config.Config, paths []string, logger *zap.Logger) (provider.Provider, func(), error) {
	backend := cfg.Provider.Backend
	// 目标全部是 http(s) URL 时自动切换 HTTP 后端
	if backend == "fs" && allHTTP(paths) {
		backend = "http"
	}

	cleanup := func() {}
	var prov provider.Provider
	switch backend {
	case "fs":
		if cfg.Provider.Root != "" {
			prov = fsprov.NewWithRoot(cfg.Provider.Root)
		} else {
			prov = fsprov.New()
		}
	case "http":
		prov = httpprov.New(cfg.Provider.HTTP, logger)
	case "blob":
		bucket, err := blob.OpenBucket(context.Background(), cfg.Provider.BucketURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open bucket %s: %w", cfg.Provider.BucketURL, err)
		}
		prov = blobprov.New(bucket)
		cleanup = func() { bucket.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}

	if cfg.Provider.Cache.Enabled {
		cached, err := cacheprov.New(prov, cfg.Provider.Cache.Config, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("cache provider: %w", err)
		}
		inner := cleanup
		cleanup = func() {
			cached.Close()
			inner()
		}
		prov = cached
	}
	return prov, cleanup, nil
}

func allHTTP(paths []string) bool {
	for _, p := range paths {
		if !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
			return false
		}
	}
	return true
}

// download 单个下载任务的进度
type download struct {
	path string
	out  *os.File
	done bool
	fail error
}

// fetchAll 把所有目标提交给引擎并泵到全部完成
func fetchAll(e *engine.Engine, jnl *journal.Journal, paths []string, outDir string, chunkSize int, logger *zap.Logger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	downloads := make([]*download, 0, len(paths))
	remaining := 0

	for _, path := range paths {
		outPath := filepath.Join(outDir, outputName(path))
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		d := &download{path: path, out: out}
		downloads = append(downloads, d)

		cb := func(resp *types.Response) {
			switch {
			case resp.Fetched:
				if _, err := d.out.Write(resp.Buffer[:resp.FetchedSize]); err != nil {
					d.fail = err
				}
			case resp.Failed:
				d.fail = types.NewError(resp.ErrorCode, fmt.Sprintf("fetch %s failed", d.path))
			}
			if resp.Finished {
				d.done = true
			}
		}
		if jnl != nil {
			cb = jnl.Callback(cb)
		}

		_, err = e.Send(&types.Request{
			Path:     path,
			Callback: cb,
			Buffer:   make([]byte, chunkSize),
		})
		if err != nil {
			d.out.Close()
			return fmt.Errorf("send %s: %w", path, err)
		}
		remaining++
		logger.Info("download queued", zap.String("path", path), zap.String("out", outPath))
	}

	// 泵循环直到全部终态
	for remaining > 0 {
		e.DoWork()
		remaining = 0
		for _, d := range downloads {
			if !d.done {
				remaining++
			}
		}
		time.Sleep(time.Millisecond)
	}

	var failed int
	for _, d := range downloads {
		d.out.Close()
		if d.fail != nil {
			failed++
			logger.Error("download failed", zap.String("path", d.path), zap.Error(d.fail))
		} else {
			logger.Info("download complete", zap.String("path", d.path))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(downloads))
	}
	return nil
}

// outputName 从路径/URL 推导输出文件名
func outputName(path string) string {
	name := path
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	return name
}

// =============================================================================
// 📜 history 命令
// =============================================================================

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("n", 20, "Number of records to show")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Journal.Path), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal database: %v\n", err)
		os.Exit(1)
	}
	jnl, err := journal.New(db, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		os.Exit(1)
	}

	records, err := jnl.Recent(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query journal: %v\n", err)
		os.Exit(1)
	}
	for _, r := range records {
		fmt.Printf("%s  %-9s  %10d bytes  %s\n",
			r.FinishedAt.Format(time.RFC3339), r.Outcome, r.BytesFetched, r.Path)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func printVersion() {
	fmt.Printf("fetchflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`fetchflow - asynchronous file/URL fetch engine

Usage:
  fetchflow fetch [flags] <url-or-path>...   Download one or more resources
  fetchflow history [flags]                  Show the fetch journal
  fetchflow version                          Show version information

Fetch flags:
  --config string   Path to config file
  --out string      Output directory (default ".")
  --chunk int       Chunk buffer size in bytes (default 262144)`)
}

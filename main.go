package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ByLCY/folio/dsl"
	"github.com/ByLCY/folio/export"
	canvasrenderer "github.com/ByLCY/folio/renderer/canvas"
	"github.com/ByLCY/folio/script"
)

func main() {
	input := flag.String("in", "examples/trip.folio", "脚本文件路径")
	output := flag.String("out", "output", "导出文件目录")
	debug := flag.String("debug", "", "渲染树调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到脚本的 JSON 数据")
	scale := flag.Float64("scale", 0, "栅格化像素密度倍数，0 表示使用脚本或默认值")
	watch := flag.Bool("watch", false, "脚本变更后自动重新执行")
	flag.Parse()

	var inputData any
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &inputData); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	}

	cfg := runConfig{
		inputPath: *input,
		outputDir: *output,
		debugPath: *debug,
		scale:     *scale,
		data:      inputData,
		logger:    log.Default(),
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if !*watch {
			log.Fatalf("执行脚本失败: %v", err)
		}
		log.Printf("[ERROR] 执行脚本失败: %v", err)
	}
	if *watch {
		if err := watchScript(ctx, cfg); err != nil {
			log.Fatalf("监听脚本失败: %v", err)
		}
	}
}

type runConfig struct {
	inputPath string
	outputDir string
	debugPath string
	scale     float64
	data      any
	logger    *log.Logger
}

// run 串联解析、编译、回放与导出。
func run(ctx context.Context, cfg runConfig) error {
	file, err := os.Open(cfg.inputPath)
	if err != nil {
		return fmt.Errorf("无法打开脚本文件 %s: %w", cfg.inputPath, err)
	}
	defer file.Close()

	ast, err := dsl.Parse(file)
	if err != nil {
		return fmt.Errorf("解析脚本失败: %w", err)
	}
	plan, err := script.Compile(ast)
	if err != nil {
		return fmt.Errorf("编译脚本失败: %w", err)
	}

	baseDir := filepath.Dir(cfg.inputPath)
	r := canvasrenderer.NewRenderer(baseDir)
	opts := export.DefaultOptions()
	if cfg.scale > 0 {
		// 命令行优先于脚本中的 meta.export.scale
		plan.Export.Scale = &cfg.scale
	}
	pipeline := &export.Pipeline{
		Renderer:   r,
		Encoder:    r,
		Typesetter: r,
		Sink:       export.DirSink{Dir: cfg.outputDir},
		Options:    opts,
	}

	res, err := script.Run(ctx, plan, script.Options{
		BaseDir:  baseDir,
		Data:     cfg.data,
		Pipeline: pipeline,
		Fonts:    r,
		Logger:   cfg.logger,
	})
	if res != nil && cfg.debugPath != "" {
		if derr := writeDebug(res, cfg.debugPath); derr != nil && err == nil {
			err = derr
		}
	}
	if err != nil {
		return err
	}
	for _, out := range res.Outputs {
		fmt.Printf("已导出：%s\n", filepath.Join(cfg.outputDir, out.Name))
	}
	return nil
}

func writeDebug(res *script.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := res.Session.WriteDebugJSON(debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

// watchScript 监听脚本所在目录，脚本写入后防抖重新执行，直到 ctx 结束。
func watchScript(ctx context.Context, cfg runConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target, err := filepath.Abs(cfg.inputPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	cfg.logger.Printf("[INFO] 正在监听 %s", target)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); abs != target {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(300*time.Millisecond, func() {
				mu.Lock()
				defer mu.Unlock()
				cfg.logger.Printf("[INFO] 脚本已变更，重新执行 %s", target)
				if err := run(ctx, cfg); err != nil {
					cfg.logger.Printf("[ERROR] 执行脚本失败: %v", err)
				}
			})
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Printf("[ERROR] 监听出错: %v", err)
		}
	}
}

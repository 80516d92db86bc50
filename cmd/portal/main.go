package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/portal"
	"github.com/weitingzhao/bifrost-trader/pkg/config"
	"github.com/weitingzhao/bifrost-trader/pkg/logger"
	"github.com/weitingzhao/bifrost-trader/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// .env 可选：存在则加载（本地开发覆盖端口等）
	_ = godotenv.Load()

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Console:    true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	srv, err := portal.NewServer(cfg.Portal)
	if err != nil {
		logrus.Errorf("创建门户后端失败: %v", err)
		os.Exit(1)
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Errorf("门户后端停止失败: %v", err)
		}
	})

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigC
		logrus.Infof("收到信号 %s，开始优雅退出", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
	}()

	if err := srv.Start(); err != nil {
		logrus.Errorf("门户后端运行失败: %v", err)
		os.Exit(1)
	}
}

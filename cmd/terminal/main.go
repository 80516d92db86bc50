package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/dashboard"
	"github.com/weitingzhao/bifrost-trader/internal/infrastructure/websocket"
	"github.com/weitingzhao/bifrost-trader/internal/services"
	"github.com/weitingzhao/bifrost-trader/pkg/api"
	"github.com/weitingzhao/bifrost-trader/pkg/config"
	"github.com/weitingzhao/bifrost-trader/pkg/logger"
	"github.com/weitingzhao/bifrost-trader/pkg/snapshot"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	_ = godotenv.Load()

	config.SetConfigPath(*configPath)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 终端模式禁止控制台日志，全部写文件，否则会打乱 TUI 渲染
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Console:    false,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 本地快照：启动时回放上次数据，首屏不留白
	var store *snapshot.Store
	if cfg.Terminal.SnapshotPath != "" {
		store, err = snapshot.Open(cfg.Terminal.SnapshotPath)
		if err != nil {
			logrus.Warnf("打开快照存储失败（禁用快照继续）: %v", err)
			store = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.Portal.BaseURL)
	dash := dashboard.New(cfg.Terminal.DefaultTimeframe, store)

	coordinator := services.NewRefreshCoordinator(client, dash)
	dash.SetRefresher(coordinator)
	dash.SetOrderService(services.NewOrderService(client, dash, coordinator))

	// 实时通道：行情直推界面，订单/账户变化只作失效信号触发重拉
	tradingStream := websocket.NewTradingStream(cfg.WebSocketURL(), websocket.Options{
		PingInterval:   cfg.Stream.PingInterval.Duration,
		ReconnectDelay: cfg.Stream.ReconnectDelay.Duration,
	})
	tradingStream.OnMarketData(dash)
	tradingStream.OnOrderUpdate(dash)
	tradingStream.OnPortfolioUpdate(dash)
	tradingStream.OnConnectionState(dash)

	if err := tradingStream.Connect(ctx); err != nil {
		logrus.Errorf("连接实时通道失败: %v", err)
		os.Exit(1)
	}

	// 首次全量加载（连接状态回调也会触发，这里兜底一次）
	go coordinator.RefreshAll(ctx)

	err = dash.Start(ctx)

	cancel()
	_ = tradingStream.Close()
	if store != nil {
		_ = store.Close()
	}
	if err != nil {
		logrus.Errorf("仪表盘退出异常: %v", err)
		os.Exit(1)
	}
}

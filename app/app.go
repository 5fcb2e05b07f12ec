package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xqmahjong/common/config"
	"xqmahjong/common/log"
	"xqmahjong/common/metrics"
	"xqmahjong/conn"
	"xqmahjong/game"
	"xqmahjong/game/engines"
	"xqmahjong/game/engines/xiangqi"
)

// Run 组装并启动服务，阻塞到收到退出信号
func Run(ctx context.Context) error {
	gameConf := config.Conf.GameConf

	// 注册引擎原型，房间创建时克隆
	engines.RegisterPrototype(engines.XiangqiMahjong4pEngine, xiangqi.NewXiangqiMahjong4p(xiangqi.Tuning{
		TurnSeconds:      gameConf.TurnSeconds,
		ClaimSeconds:     gameConf.ClaimSeconds,
		AiThinkMin:       time.Duration(gameConf.AiThinkMinMs) * time.Millisecond,
		AiThinkMax:       time.Duration(gameConf.AiThinkMaxMs) * time.Millisecond,
		NextRoundSeconds: gameConf.NextRoundSeconds,
		EmptyRoomSeconds: gameConf.EmptyRoomSeconds,
	}))

	connManager := conn.NewManager()
	roomManager := game.NewRoomManager(connManager)
	service := game.NewService(connManager, roomManager)
	service.RegisterHandlers()

	monitor := game.NewMonitor(roomManager, 5*time.Second)
	go monitor.Report(ctx)

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", config.Conf.MetricPort)
		log.Info("启动监控..., URL: http://localhost:%d/debug/statsviz/", config.Conf.MetricPort)
		if err := metrics.Serve(addr, monitor.Stats); err != nil {
			log.Error("监控服务退出: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", config.Conf.Port)
		if err := connManager.Run(addr); err != nil {
			log.Fatal("websocket 服务启动失败: %v", err)
		}
	}()

	stop := func() {
		log.Info("正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			monitor.Stop()
			for _, summary := range roomManager.ListRooms() {
				roomManager.DestroyRoom(summary.ID)
			}
			close(done)
		}()

		select {
		case <-done:
			log.Info("服务已关闭")
		case <-shutdownCtx.Done():
			log.Warn("关闭服务超时（5秒）")
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case s := <-c:
			switch s {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				stop()
				log.Info("中断信号，服务停止")
				return nil
			case syscall.SIGHUP:
				stop()
				log.Info("挂起信号，服务停止")
				return nil
			default:
				return nil
			}
		}
	}
}

package main

import (
	"log"
	"log/slog"
	"os"

	"TextToVideo-server/config"
	"TextToVideo-server/routers"
	"TextToVideo-server/routers/api"
	"TextToVideo-server/service"
)

func main() {
	config.InitConfig()
	setupLogging(config.AppConfig.Log.Level)

	local, err := service.NewLocalStore(config.AppConfig.Local.DataDir)
	if err != nil {
		log.Fatalf("本地存储初始化失败: %v", err)
	}

	// OSS 未配置时退化为本地模式：列表和视频生成不可用，其余功能照常
	remote := service.NoRemote()
	if config.AppConfig.OSSConfigured() {
		oss, err := service.NewOSSStore(config.AppConfig)
		if err != nil {
			log.Fatalf("OSS 初始化失败: %v", err)
		}
		remote = oss
	} else {
		slog.Warn("OSS 未配置，以本地模式启动（工作流列表、视频生成不可用）")
	}

	store := service.NewWorkflowStore(local, remote)
	bailian := service.NewBailianClient(config.AppConfig)
	video := service.NewVideoService(config.AppConfig.Video.FFmpegBin)
	engine := service.NewEngine(store, local, remote, bailian, bailian, video)

	r := routers.InitRouter(api.NewHandler(store, engine))
	slog.Info("Server starting", "port", config.AppConfig.Server.Port)
	if err := r.Run(config.AppConfig.Server.Port); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

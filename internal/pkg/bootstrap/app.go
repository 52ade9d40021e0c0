package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"atlas/internal/pkg/config"
	"atlas/internal/pkg/nacos"
	"atlas/internal/pkg/tracing"
)

// AppCtx 传给路由注册回调的依赖集合。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
}

// AppInfo 包含了启动一个服务所需的全部信息。
type AppInfo struct {
	ServiceName string
	Port        int
	Config      *config.Config

	// RegisterHandlers 由每个服务注册自己的 HTTP 路由。
	RegisterHandlers func(appCtx AppCtx)

	// OnShutdown 在 HTTP 服务器关闭前被调用，用于停后台任务、关闭生产者等。
	OnShutdown func(ctx context.Context)
}

// StartService 封装通用的启动与优雅关停流程：tracer、可选的 Nacos 注册、
// HTTP 服务器，然后阻塞等待退出信号，按后进先出顺序清理。
func StartService(info AppInfo) {
	cfg := info.Config

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var registry *nacos.Client
	ip := ""
	if cfg.Nacos.Enabled {
		registry, err = nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = getOutboundIP()
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to resolve outbound IP")
		}
		if err := registry.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			zlog.Fatal().Err(err).Msg("failed to register service with nacos")
		}
		zlog.Info().Str("ip", ip).Int("port", info.Port).Msg("registered with nacos")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		zlog.Info().Str("addr", server.Addr).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msgf("shutting down %s", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if registry != nil {
		if err := registry.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			zlog.Error().Err(err).Msg("error deregistering from nacos")
		}
		registry.Close()
	}

	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("error shutting down tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("error shutting down http server")
	}

	zlog.Info().Msgf("%s gracefully shut down", info.ServiceName)
}

// getOutboundIP 取本机对外通信使用的 IP，用于注册。
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

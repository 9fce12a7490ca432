// =============================================================================
// personad 主入口
// =============================================================================
// 守护进程入口点：加载角色文件，编排 agent 启动，暴露 HTTP 网关，
// 并在终端上提供聊天回路。
//
// 使用方法:
//
//	personad start                                 # 以默认角色启动
//	personad start --characters a.json,b.yaml      # 指定角色文件
//	personad start --config config.yaml            # 指定配置文件
//	personad chat --agent Vela                     # 连接运行中的守护进程聊天
//	personad version                               # 显示版本信息
//	personad health                                # 健康检查
//
// =============================================================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/personacore/personad/character"
	"github.com/personacore/personad/chat"
	"github.com/personacore/personad/config"
	"github.com/personacore/personad/gateway"
	"github.com/personacore/personad/internal/cache"
	"github.com/personacore/personad/internal/database"
	"github.com/personacore/personad/internal/metrics"
	"github.com/personacore/personad/internal/server"
	"github.com/personacore/personad/orchestrator"
	"github.com/personacore/personad/registry"
	"github.com/personacore/personad/store"
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
	case "start":
		runStart(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ start 命令
// =============================================================================

type startFlags struct {
	character  string
	characters string
	configPath string
}

// parseStartFlags 解析 start 命令参数；无法解析的参数仅告警并忽略，
// 等同于未提供任何参数
func parseStartFlags(args []string) startFlags {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	characterArg := fs.String("character", "", "Character file path (comma-separated for multiple)")
	charactersArg := fs.String("characters", "", "Comma-separated character file paths")
	configPath := fs.String("config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring unparseable arguments: %v\n", err)
		return startFlags{}
	}
	return startFlags{
		character:  *characterArg,
		characters: *charactersArg,
		configPath: *configPath,
	}
}

func runStart(args []string) {
	flags := parseStartFlags(args)

	// 加载配置
	loader := config.NewLoader()
	if flags.configPath != "" {
		loader = loader.WithConfigPath(flags.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting personad",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// 加载角色文件；任一文件失败则整个启动失败
	paths := append(character.SplitArg(flags.character), character.SplitArg(flags.characters)...)
	chars, err := character.NewLoader(character.DefaultDir, logger).Load(paths)
	if err != nil {
		logger.Error("Failed to load characters", zap.Error(err))
		os.Exit(1)
	}

	// Redis 可选：连接失败时退回数据库缓存表
	var redisCache *cache.Redis
	if cfg.Redis.Addr != "" {
		redisCache, err = cache.NewRedis(cache.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			DefaultTTL: cfg.Redis.DefaultTTL,
		}, logger)
		if err != nil {
			logger.Warn("Redis not available, falling back to database cache", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	// 指标收集器
	collector := metrics.NewCollector("personad", nil, logger)

	// 编排启动所有角色
	reg := registry.New(logger)
	orch := orchestrator.New(orchestrator.Options{
		Store: store.Options{
			PostgresURL: cfg.Database.PostgresURL,
			SQLiteFile:  cfg.Database.SQLiteFile,
			DataDir:     cfg.Database.DataDir,
			Pool: database.Config{
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			},
		},
		Redis:    redisCache,
		Secrets:  cfg.Secrets,
		FailFast: cfg.Orchestrator.FailFast,
		Metrics:  collector,
	}, reg, logger)

	agents, err := orch.StartAll(context.Background(), chars)
	if err != nil {
		if cfg.Orchestrator.FailFast || len(agents) == 0 {
			logger.Fatal("Agent startup failed", zap.Error(err))
		}
		logger.Error("Some agents failed to start", zap.Error(err))
	}
	defer stopAgents(agents, logger)

	// 启动 HTTP 网关
	gw := gateway.New(gateway.Options{
		Registry: reg,
		Metrics:  collector,
		Logger:   logger,
	})
	mgr := server.NewManager(gw.Handler(), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	if err := mgr.Start(); err != nil {
		logger.Fatal("Failed to start gateway", zap.Error(err))
	}

	// 终端聊天回路：面向第一个角色，经网关走与远程客户端相同的路径
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatDone := make(chan struct{})
	go func() {
		defer close(chatDone)
		bridge := chat.New(chat.Options{
			BaseURL: cfg.GatewayURL(),
			AgentID: chars[0].Name,
			In:      os.Stdin,
			Out:     os.Stdout,
			Logger:  logger,
		})
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Chat session ended with error", zap.Error(err))
		}
	}()

	// 等待聊天退出、关闭信号或服务器错误
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-chatDone:
		logger.Info("Chat session ended, shutting down")
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-mgr.Errors():
		logger.Error("Gateway exited unexpectedly", zap.Error(err))
	}

	cancel()
	if err := mgr.Shutdown(context.Background()); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}

	logger.Info("personad stopped")
}

// stopAgents 关闭所有已启动 agent 的客户端与存储
func stopAgents(agents []*orchestrator.Agent, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, agent := range agents {
		for _, c := range agent.Clients {
			if err := c.Stop(ctx); err != nil {
				logger.Warn("Client stop failed",
					zap.String("agent", agent.Runtime.Name()),
					zap.String("client", c.Name()),
					zap.Error(err))
			}
		}
		if err := agent.Runtime.Store().Close(); err != nil {
			logger.Warn("Store close failed",
				zap.String("agent", agent.Runtime.Name()),
				zap.Error(err))
		}
	}
}

// =============================================================================
// 💬 chat 命令（连接已运行的守护进程）
// =============================================================================

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	addr := fs.String("addr", "", "Gateway address (default from config)")
	agent := fs.String("agent", "", "Agent name or ID (default: first default character)")
	configPath := fs.String("config", "", "Path to config file")
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

	baseURL := *addr
	if baseURL == "" {
		baseURL = cfg.GatewayURL()
	}
	agentID := *agent
	if agentID == "" {
		agentID = character.DefaultCharacter().Name
	}

	bridge := chat.New(chat.Options{
		BaseURL: baseURL,
		AgentID: agentID,
		In:      os.Stdin,
		Out:     os.Stdout,
	})
	if err := bridge.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:3000", "Gateway address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("personad %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`personad - Persona Agent Daemon

Usage:
  personad <command> [options]

Commands:
  start     Load characters, start agents, and serve the gateway
  chat      Chat with an agent on a running daemon
  version   Show version information
  health    Check gateway health
  help      Show this help message

Options for 'start':
  --character <paths>    Character file path(s), comma-separated
  --characters <paths>   Alias for --character
  --config <path>        Path to configuration file (YAML)

Options for 'chat':
  --addr <url>           Gateway address (default http://localhost:3000)
  --agent <name|id>      Agent to chat with
  --config <path>        Path to configuration file (YAML)

Examples:
  personad start
  personad start --characters vela.json,mori.yaml
  personad start --config /etc/personad/config.yaml
  personad chat --agent Vela
  personad health --addr http://localhost:3000
  personad version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
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

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "collab-whiteboard/internal/handler/http"
	wsHandler "collab-whiteboard/internal/handler/websocket"
	"collab-whiteboard/internal/hub"
	gormpersistence "collab-whiteboard/internal/infra/persistence/gorm"
	"collab-whiteboard/internal/infra/setup"
	redisstate "collab-whiteboard/internal/infra/state/redis"
	"collab-whiteboard/internal/middleware"
	"collab-whiteboard/internal/repository"
	"collab-whiteboard/internal/service"
	"collab-whiteboard/internal/tasks"
	"collab-whiteboard/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Scheduler      *asynq.Scheduler
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger。各包通过 logrus 包级函数记录日志，所以配置标准 logger
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Env: %s)", logLevel.String(), cfg.AppEnv)

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	snapshotRepo := gormpersistence.NewGormSnapshotRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	// 5. 初始化 Services
	roomService, err := service.NewRoomService(roomRepo, cfg.JWTSecret, cfg.TicketTTLHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create RoomService: %w", err)
	}
	snapshotService := service.NewSnapshotService(snapshotRepo, stateRepo, roomRepo, tasks.NewEnqueuer(asynqClient), cfg.SnapshotCacheTTL)
	log.Info("Services initialized")

	// 6. 初始化 Hub：要求票据时同时校验房间存在
	hubInstance := hub.NewHub(snapshotService, hub.Config{
		RequireTicket: cfg.RequireRoomTicket,
		VerifyRooms:   cfg.RequireRoomTicket,
	})
	log.WithField("require_ticket", cfg.RequireRoomTicket).Info("Hub initialized")

	// 7. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(
		redisClientOpt,
		worker.NewSnapshotPersistHandler(snapshotService, hubInstance.Store()),
		worker.NewSnapshotCheckpointHandler(hubInstance.Store(), snapshotService),
		log,
	)

	// 8. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := newRouter(cfg, log, stateRepo,
		httpHandler.NewRoomHandler(roomService),
		httpHandler.NewStatsHandler(hubInstance),
		wsHandler.NewWebSocketHandler(hubInstance, cfg.AllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// newRouter 组装中间件和路由
func newRouter(
	cfg *Config,
	log *logrus.Logger,
	state repository.StateRepository,
	roomHandler *httpHandler.RoomHandler,
	statsHandler *httpHandler.StatsHandler,
	ws *wsHandler.WebSocketHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.RateLimit(state, cfg.RateLimitMax, cfg.RateLimitWindow))

	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Whiteboard server is running") })
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	api := router.Group("/api")
	{
		api.POST("/create-room", roomHandler.CreateRoom)
		api.POST("/join-room", roomHandler.JoinRoom)
		api.GET("/stats", statsHandler.Get)
	}
	router.GET("/ws", middleware.RoomTicket(cfg.JWTSecret, cfg.RequireRoomTicket), ws.HandleConnection)
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{
		Logger: a.Log.WithField("component", "scheduler"),
	})

	schedule := a.Config.CheckpointSchedule
	entryID, err := scheduler.Register(schedule, tasks.NewSnapshotCheckpointTask())
	if err != nil {
		a.Log.Errorf("Could not register periodic snapshot checkpoint task: %v", err)
		return
	}
	a.Log.Infof("Periodic snapshot checkpoint task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	a.Scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			return
		}
		a.Log.Info("Asynq scheduler stopped.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. 先停止接收新连接
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭所有 WebSocket 客户端，等待进行中的快照保存
	if a.Hub != nil {
		if err := a.Hub.Shutdown(ctx); err != nil {
			a.Log.Errorf("Error waiting for hub shutdown: %v", err)
		}
	}

	// 3. 停止调度器和 Worker
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Asynq Client 和 Redis 连接
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	// 5. 关闭数据库连接池
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}

// CORSMiddleware 只对白名单内的来源回写 Access-Control-Allow-Origin
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Writer.Header().Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Package api - REST API оператора поверх сервиса снапшотов: вход по JWT,
// просмотр и восстановление сохранённых инвентарей.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/backinv/internal/auth"
	"github.com/annel0/backinv/internal/command"
	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/messages"
	"github.com/annel0/backinv/internal/middleware"
	"github.com/annel0/backinv/internal/snapshot"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router    *gin.Engine
	server    *http.Server
	svc       command.Lifecycle
	operators *auth.OperatorRepo
	tokens    *auth.TokenIssuer
	metrics   *ServerMetrics
	log       *logging.Logger
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr      string               // адрес, по умолчанию ":8089"
	Service   command.Lifecycle    // сервис снапшотов
	Operators *auth.OperatorRepo   // учётные записи операторов
	Tokens    *auth.TokenIssuer    // выпуск и проверка JWT
	Registry  *prometheus.Registry // метрики, отдаются на /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Service == nil || cfg.Operators == nil || cfg.Tokens == nil {
		return nil, errors.New("api: service, operators и tokens обязательны")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8089"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("backinv_api"))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw, err := middleware.NewPrometheusMiddleware("backinv", cfg.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Registry)

	rs := &RestServer{
		router:    router,
		svc:       cfg.Service,
		operators: cfg.Operators,
		tokens:    cfg.Tokens,
		metrics:   NewServerMetrics(),
		log:       logging.GetComponentLogger("API"),
	}
	rs.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// Handler возвращает http.Handler сервера (используется в тестах)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")

	// Аутентификация без JWT
	api.POST("/auth/login", rs.handleLogin)

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware(), rs.levelMiddleware(command.PermissionLevel))
	{
		protected.GET("/server", rs.handleServerInfo)
		protected.GET("/players/:player/snapshots", rs.handleListSnapshots)
		protected.POST("/players/:player/restore", rs.handleRestore)
	}
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	Level   int    `json:"level,omitempty"`
}

// RestoreRequest - тело POST /api/players/:player/restore
type RestoreRequest struct {
	Save string `json:"save" binding:"required"` // индекс ("1") или имя сохранения
}

// SnapshotItem - строка списка снапшотов
type SnapshotItem struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleLogin обменивает имя и пароль оператора на JWT
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Message: "Неверный формат запроса"})
		return
	}

	op, err := rs.operators.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		rs.log.Warn("⚠️ Неудачный вход оператора %s с %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	}

	token, err := rs.tokens.GenerateJWT(op)
	if err != nil {
		rs.log.Error("❌ Ошибка генерации токена для %s: %v", op.Name, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{Message: "Ошибка генерации токена"})
		return
	}

	rs.log.Info("🔑 Оператор %s вошёл", op.Name)
	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Успешная авторизация",
		Level:   op.Level,
	})
}

// handleListSnapshots возвращает снапшоты игрока, новые первыми. Индекс начинается с 1.
func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	player := c.Param("player")

	list, err := rs.svc.List(c.Request.Context(), player)
	if err != nil {
		rs.fail(c, err, "listing inventories")
		return
	}

	items := make([]SnapshotItem, 0, len(list))
	for i, id := range list {
		items = append(items, SnapshotItem{Index: i + 1, ID: string(id)})
	}

	message := "Снапшоты получены"
	if len(items) == 0 {
		message = command.StripFormatting(messages.Render(rs.svc.Config().NoSavesFound, messages.Fields{"player": player}))
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: message,
		Data:    gin.H{"player": player, "snapshots": items},
	})
}

// handleRestore восстанавливает инвентарь игрока в сети
func (rs *RestServer) handleRestore(c *gin.Context) {
	player := c.Param("player")

	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса"})
		return
	}

	operator := "unknown"
	if claims := operatorClaims(c); claims != nil {
		operator = claims.Operator
	}

	restored, err := rs.svc.Restore(c.Request.Context(), player, req.Save)
	if err != nil {
		rs.log.Warn("⚠️ %s: восстановление %s (%s) не выполнено: %v", operator, player, req.Save, err)
		rs.fail(c, err, "loading inventory")
		return
	}

	rs.log.Info("✅ %s восстановил инвентарь %s из %s", operator, restored.Player, restored.ID)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Инвентарь восстановлен, игрок отключён для перезахода",
		Data:    gin.H{"player": restored.Player, "id": string(restored.ID)},
	})
}

// fail отвечает текстом ошибки из шаблонов конфигурации
func (rs *RestServer) fail(c *gin.Context, err error, action string) {
	text := messages.ForError(rs.svc.Config().Messages, err, action)
	c.JSON(StatusFor(err), GenericResponse{
		Success: false,
		Message: command.StripFormatting(text),
		Data:    gin.H{"kind": snapshot.KindOf(err).String()},
	})
}

// StatusFor сопоставляет доменную ошибку с HTTP-статусом
func StatusFor(err error) int {
	if snapshot.IsTargetFacing(err) {
		return http.StatusUnprocessableEntity
	}
	switch snapshot.KindOf(err) {
	case snapshot.KindInvalidPlayer, snapshot.KindInvalidIndex:
		return http.StatusBadRequest
	case snapshot.KindNotFound, snapshot.KindSaveNotFound, snapshot.KindNoSaves:
		return http.StatusNotFound
	case snapshot.KindPlayerNotOnline:
		return http.StatusConflict
	case snapshot.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServerInfo возвращает информацию о процессе
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	info := rs.metrics.Snapshot()
	info["name"] = "backinv"
	info["enabled"] = rs.svc.Config().Enabled

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает REST сервер, дожидаясь текущих запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}

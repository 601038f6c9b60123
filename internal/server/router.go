package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/authoring"
	"github.com/inkpath/backend/internal/stories"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingAccountService = errors.New("account service dependency required")
	errMissingStoryService   = errors.New("story service dependency required")
	errMissingAuthoring      = errors.New("authoring service dependency required")
)

// TokenManager issues and verifies bearer tokens.
type TokenManager interface {
	IssueToken(accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the services.
type Dependencies struct {
	TokenManager TokenManager
	Accounts     *accounts.Service
	Stories      *stories.Service
	Authoring    *authoring.Service
	Logger       *zap.Logger
	// ExposeStacks includes captured call stacks in error bodies. It is off in production.
	ExposeStacks bool
}

// NewHTTPHandler builds the gin engine serving the REST API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Stories == nil {
		return nil, errMissingStoryService
	}
	if deps.Authoring == nil {
		return nil, errMissingAuthoring
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		tokens:       deps.TokenManager,
		accounts:     deps.Accounts,
		stories:      deps.Stories,
		authoring:    deps.Authoring,
		logger:       logger,
		exposeStacks: deps.ExposeStacks,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(requestMetrics())
	router.Use(corsMiddleware())

	router.GET("/health", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/users", handler.handleRegister)
	api.POST("/users/login", handler.handleLogin)
	api.GET("/stories", handler.handleListStories)
	api.GET("/stories/:id", handler.handleGetStory)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/users", handler.handleListAccounts)
	protected.GET("/users/:id", handler.handleGetAccount)
	protected.PATCH("/users/:id", handler.handleUpdateAccount)
	protected.DELETE("/users/:id", handler.handleDeleteAccount)

	protected.POST("/stories", handler.handleCreateStory)
	protected.PATCH("/stories/:id", handler.handleUpdateStory)
	protected.DELETE("/stories/:id", handler.handleDeleteStory)
	protected.GET("/stories/:id/like", handler.handleIsLiked)
	protected.POST("/stories/:id/like", handler.handleLike)
	protected.DELETE("/stories/:id/like", handler.handleUnlike)
	protected.PUT("/stories/:id/publish", handler.handleSetPublish)
	protected.POST("/stories/:id/favourite", handler.handleAddFavourite)
	protected.DELETE("/stories/:id/favourite", handler.handleRemoveFavourite)

	router.NoRoute(handler.handleNotFound)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}

type httpHandler struct {
	tokens       TokenManager
	accounts     *accounts.Service
	stories      *stories.Service
	authoring    *authoring.Service
	logger       *zap.Logger
	exposeStacks bool
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/auth"
	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/repository"
	"github.com/example/artifact-api/internal/usecase"
)

// AnalysisService is the analysis flow consumed by the HTTP layer.
type AnalysisService interface {
	Analyze(ctx context.Context, userID string, upload usecase.Upload) (*usecase.AnalysisOutcome, error)
	Detect(ctx context.Context, imageURL string) (*usecase.AnalysisOutcome, error)
	GetResult(ctx context.Context, userID, requestID string) (*usecase.AnalysisOutcome, error)
	Stats(ctx context.Context) (*usecase.AnalysisStats, error)
}

type ItemService interface {
	List(ctx context.Context) ([]repository.Item, error)
	Get(ctx context.Context, id uint) (*repository.Item, error)
	Create(ctx context.Context, in usecase.CreateItemInput) (*repository.Item, error)
	Update(ctx context.Context, id uint, update repository.ItemUpdate) (*repository.Item, error)
	Delete(ctx context.Context, id uint) (*repository.Item, error)
}

type PhotoService interface {
	List(ctx context.Context) ([]repository.Photo, error)
	Create(ctx context.Context, in usecase.CreatePhotoInput) (*repository.Photo, error)
}

type JuryService interface {
	Register(ctx context.Context, username, password, email string) (*repository.Jury, error)
	Login(ctx context.Context, username, password string) (*usecase.LoginResult, error)
}

// Services bundles everything the routes call into.
type Services struct {
	Analysis AnalysisService
	Items    ItemService
	Photos   PhotoService
	Juries   JuryService
}

type handler struct {
	Services
	maxUploadSize int64
	logger        *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, services Services, authMiddleware gin.HandlerFunc, maxUploadSize int64, logger *zap.Logger) {
	if maxUploadSize <= 0 {
		maxUploadSize = MaxUploadSize
	}
	h := &handler{Services: services, maxUploadSize: maxUploadSize, logger: logger}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Artifact AI Backend is running!")
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/jury/register", h.registerJury)
	api.POST("/jury/login", h.loginJury)

	protected := api.Group("", authMiddleware)
	uploads := limitBody(maxUploadSize)

	protected.POST("/analyze", uploads, h.analyze)
	protected.GET("/analyze/stats", h.analysisStats)
	protected.GET("/analyze/:id", h.analysisResult)
	protected.POST("/detect", h.detect)

	protected.GET("/items", h.listItems)
	protected.POST("/items", uploads, h.createItem)
	protected.GET("/items/:id", h.getItem)
	protected.PUT("/items/:id", h.updateItem)
	protected.DELETE("/items/:id", h.deleteItem)

	protected.GET("/photos", h.listPhotos)
	protected.POST("/photos", uploads, h.createPhoto)
}

func (h *handler) analyze(c *gin.Context) {
	upload, err := readImage(c, h.maxUploadSize)
	if err != nil {
		h.uploadFailed(c, err)
		return
	}

	userID, _ := auth.GetUserID(c.Request.Context())
	outcome, err := h.Analysis.Analyze(c.Request.Context(), userID, *upload)
	if err != nil {
		h.fail(c, "handlers.analyze", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Image analyzed successfully",
		"requestId":      outcome.RequestID,
		"analysisResult": outcome.Analysis,
		"imageUrl":       outcome.ImageURL,
		"isAI":           outcome.Verdict.Summary(),
		"verdict":        outcome.Verdict,
		"cached":         outcome.Cached,
	})
}

func (h *handler) analysisResult(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	outcome, err := h.Analysis.GetResult(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, "handlers.analysis_result", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requestId":      outcome.RequestID,
		"analysisResult": outcome.Analysis,
		"imageUrl":       outcome.ImageURL,
		"isAI":           outcome.Verdict.Summary(),
		"verdict":        outcome.Verdict,
		"createdAt":      outcome.CreatedAt,
	})
}

func (h *handler) analysisStats(c *gin.Context) {
	stats, err := h.Analysis.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "handlers.analysis_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type detectRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (h *handler) detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image URL is required"})
		return
	}

	outcome, err := h.Analysis.Detect(c.Request.Context(), req.ImageURL)
	if err != nil {
		h.fail(c, "handlers.detect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Image analyzed successfully",
		"receivedImageUrl": req.ImageURL,
		"analysisResult":   outcome.Analysis,
		"isAI":             outcome.Verdict.Summary(),
		"verdict":          outcome.Verdict,
	})
}

func (h *handler) listItems(c *gin.Context) {
	items, err := h.Items.List(c.Request.Context())
	if err != nil {
		h.fail(c, "handlers.list_items", err)
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No items found"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handler) getItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := h.Items.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "handlers.get_item", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handler) createItem(c *gin.Context) {
	image, err := readImage(c, h.maxUploadSize)
	if err != nil && !errors.Is(err, errNoFile) {
		h.uploadFailed(c, err)
		return
	}

	item, err := h.Items.Create(c.Request.Context(), usecase.CreateItemInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Image:       image,
	})
	if err != nil {
		h.fail(c, "handlers.create_item", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Item added successfully", "item": item})
}

type updateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *handler) updateItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	item, err := h.Items.Update(c.Request.Context(), id, repository.ItemUpdate{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(c, "handlers.update_item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item updated successfully", "item": item})
}

func (h *handler) deleteItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := h.Items.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "handlers.delete_item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully", "item": item})
}

func (h *handler) listPhotos(c *gin.Context) {
	photos, err := h.Photos.List(c.Request.Context())
	if err != nil {
		h.fail(c, "handlers.list_photos", err)
		return
	}
	if len(photos) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No photos found"})
		return
	}
	c.JSON(http.StatusOK, photos)
}

func (h *handler) createPhoto(c *gin.Context) {
	image, err := readImage(c, h.maxUploadSize)
	if err != nil && !errors.Is(err, errNoFile) {
		h.uploadFailed(c, err)
		return
	}

	photo, err := h.Photos.Create(c.Request.Context(), usecase.CreatePhotoInput{
		Name:       c.PostForm("name"),
		ImageTitle: c.PostForm("imageTitle"),
		Image:      image,
	})
	if err != nil {
		h.fail(c, "handlers.create_photo", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Photo added successfully", "photo": photo})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (h *handler) registerJury(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username, password, and email are required"})
		return
	}
	jury, err := h.Juries.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.fail(c, "handlers.register_jury", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Jury registered successfully", "jury": jury})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handler) loginJury(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	result, err := h.Juries.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, "handlers.login_jury", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *handler) uploadFailed(c *gin.Context, err error) {
	var upErr *uploadError
	if errors.As(err, &upErr) {
		c.JSON(upErr.status, gin.H{"error": upErr.message})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps use case errors onto HTTP responses.
func (h *handler) fail(c *gin.Context, operation string, err error) {
	var vErr *usecase.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": vErr.Details})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, usecase.ErrAnalysisPending):
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
	case errors.Is(err, usecase.ErrJuryExists), errors.Is(err, usecase.ErrEmailTaken), errors.Is(err, usecase.ErrInvalidImageURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		logging.WithOperation(h.logger, operation, logging.RequestID(c)).Error("request failed", logging.ErrorFields(err)...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

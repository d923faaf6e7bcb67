package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plate-match/internal/plate"
	"plate-match/internal/report"
)

var errInvalidInput = errors.New("invalid input")

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".wmv": {}, ".flv": {},
}

// Processor is the video pipeline the handler drives.
type Processor interface {
	Process(ctx context.Context, path string) *plate.VideoResult
	ProcessWithPlate(ctx context.Context, path, target string) *plate.VideoResult
	ProcessWithVehicles(ctx context.Context, path string, info plate.VehicleInfo) *plate.MultiResult
}

type Options struct {
	MaxUploadBytes int64
	OCRAvailable   bool
	External       string
	// TempDir holds uploads while they are processed. Empty means os.TempDir.
	TempDir string
}

type Handler struct {
	// mu serializes pipeline runs; the processor holds a single OCR engine.
	mu   sync.Mutex
	proc Processor
	opts Options
	log  zerolog.Logger
}

func NewHandler(proc Processor, opts Options, log zerolog.Logger) *Handler {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Handler{
		proc: proc,
		opts: opts,
		log:  log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/videos/plates", h.scanVideo)
		api.POST("/messages/plates", h.extractMessage)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"ocr_available": h.opts.OCRAvailable,
		"external":      h.opts.External,
	})
}

func (h *Handler) scanVideo(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(h.tooLargeMessage()))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	if h.opts.MaxUploadBytes > 0 && file.Size > h.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(h.tooLargeMessage()))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := videoExtensions[ext]; !ok {
		h.handleError(c, fmt.Errorf("%w: unsupported video format %q", errInvalidInput, ext))
		return
	}

	path := filepath.Join(h.opts.TempDir, "platematch-"+uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.handleError(c, fmt.Errorf("store upload: %w", err))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.log.Warn().Err(err).Str("path", path).Msg("failed to remove upload")
		}
	}()

	log := h.log.With().Str("request_id", requestID(c)).Str("filename", file.Filename).Logger()
	log.Info().Str("size", humanize.Bytes(uint64(file.Size))).Msg("video uploaded")

	input := strings.TrimSpace(c.PostForm("plate_number"))
	ctx := c.Request.Context()

	switch {
	case input == "":
		var res *plate.VideoResult
		h.serialize(func() { res = h.proc.Process(ctx, path) })
		h.writeVideoResult(c, res, report.Detections(res))

	case plate.LooksLikeMessage(input):
		info := plate.ExtractVehicleNumbers(input)
		if len(info.AllPlates) == 0 {
			log.Info().Msg("no vehicle numbers in message")
			c.JSON(http.StatusOK, gin.H{"data": info, "report": report.NoVehicleNumbers(input)})
			return
		}
		var res *plate.MultiResult
		h.serialize(func() { res = h.proc.ProcessWithVehicles(ctx, path, info) })
		status := http.StatusOK
		if !res.Success {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"data": res, "report": report.Vehicles(res, input)})

	default:
		var res *plate.VideoResult
		h.serialize(func() { res = h.proc.ProcessWithPlate(ctx, path, input) })
		h.writeVideoResult(c, res, report.Match(res))
	}
}

// serialize runs fn while holding mu. The lock is released even if fn panics.
func (h *Handler) serialize(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

func (h *Handler) writeVideoResult(c *gin.Context, res *plate.VideoResult, text string) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"data": res, "report": text})
}

type messageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) extractMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.handleError(c, fmt.Errorf("%w: message is required", errInvalidInput))
		return
	}

	c.JSON(http.StatusOK, successResponse(plate.ExtractVehicleNumbers(req.Message)))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("file too large (max %s)", humanize.Bytes(uint64(h.opts.MaxUploadBytes)))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

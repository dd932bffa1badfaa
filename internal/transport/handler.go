package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-doc-verifier/internal/config"
	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/observer"
	"go-doc-verifier/internal/service"
	"go-doc-verifier/pkg/models"

	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
	"github.com/didip/tollbooth_gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response headers for verification bookkeeping
const (
	HeaderVerificationID = "X-Verification-Id"
	HeaderProcessingTime = "X-Processing-Time"
	HeaderInputWarning   = "X-Input-Warning"
)

var documentRoles = []string{"original", "uploaded"}

// Multipart field names for POST /verify
const (
	fieldOriginal = "original"
	fieldUploaded = "uploaded"
)

// NewHandler builds the HTTP surface. metrics may be nil, in which case
// GET /metrics is not served.
func NewHandler(svc service.VerificationService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxRequestBodySize

	r.Use(
		corsMiddleware(cfg.CORSAllowedOrigins),
		errorHandler(),
	)

	// Liveness stays outside rate limits and auth
	r.GET("/health", healthCheck)

	api := r.Group("/")
	api.Use(
		rateLimiter(cfg.RateLimitPerSecond),
		apiKeyAuth(cfg.APIKey),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)
	api.POST("/verify", verifyDocuments(svc, cfg))
	api.POST("/verify/urls", verifyURLs(svc, cfg))
	if metrics != nil {
		api.GET("/metrics", metricsHandler(metrics))
	}

	return r
}

func verifyDocuments(svc service.VerificationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing document verification request")

		original, err := readFormFile(c, fieldOriginal)
		if err != nil {
			respondError(c, err)
			return
		}
		uploaded, err := readFormFile(c, fieldUploaded)
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := svc.VerifyDocuments(ctx, original, uploaded)
		if err != nil {
			respondError(c, err)
			return
		}

		writeVerification(c, resp)
	}
}

func verifyURLs(svc service.VerificationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.VerifyURLsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bodyError("Invalid request format", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"original_url": req.OriginalURL,
			"uploaded_url": req.UploadedURL,
			"ip":           c.ClientIP(),
		}).Info("Processing document URL verification request")

		resp, err := svc.VerifyURLs(ctx, req.OriginalURL, req.UploadedURL)
		if err != nil {
			respondError(c, err)
			return
		}

		writeVerification(c, resp)
	}
}

func metricsHandler(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("Missing file field %q", field), err)
		}
		return nil, bodyError("Invalid multipart form", err)
	}
	return readPart(header)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("Unable to open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("Unable to read uploaded file", err)
	}
	return data, nil
}

// bodyError distinguishes an oversized body from a malformed one
func bodyError(message string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &apperrors.AppError{
			Type:       apperrors.ErrorTypeValidation,
			Message:    fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			StatusCode: http.StatusRequestEntityTooLarge,
			Cause:      err,
		}
	}
	return apperrors.NewValidationError(message, err)
}

// writeVerification sends the bare output contract; the verification id,
// timing and scan warnings go in response headers
func writeVerification(c *gin.Context, resp *models.VerificationResponse) {
	logCompleted(c, resp)

	c.Header(HeaderVerificationID, resp.VerificationID)
	c.Header(HeaderProcessingTime, strconv.FormatFloat(resp.ProcessingTimeSec, 'f', 3, 64))
	for i, doc := range resp.Documents {
		if i >= len(documentRoles) {
			break
		}
		for _, w := range doc.InputWarnings {
			c.Writer.Header().Add(HeaderInputWarning, documentRoles[i]+": "+w)
		}
	}
	c.JSON(http.StatusOK, resp.AggregateResult)
}

func logCompleted(c *gin.Context, resp *models.VerificationResponse) {
	logger.WithFields(logrus.Fields{
		"verification_id":     resp.VerificationID,
		"overall_status":      resp.OverallStatus,
		"processing_time_sec": resp.ProcessingTimeSec,
		"ip":                  c.ClientIP(),
	}).Info("Document verification request completed")
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "User-Agent"},
		ExposeHeaders: []string{"Content-Length", HeaderVerificationID, HeaderProcessingTime, HeaderInputWarning},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

func rateLimiter(perSecond float64) gin.HandlerFunc {
	message, _ := json.Marshal(models.ErrorResponse{
		Error:   http.StatusText(http.StatusTooManyRequests),
		Message: "You are going too fast! You have been ratelimited.",
	})

	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Minute,
	})
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(string(message))

	return tollbooth_gin.LimitHandler(lmt)
}

// apiKeyAuth requires "Authorization: Bearer <key>" when key is set
func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(key)) != 1 {
			respondError(c, apperrors.NewUnauthorizedError("Missing or invalid API key", nil))
			return
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	message := "request processing failed"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}

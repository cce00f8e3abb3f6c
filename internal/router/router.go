package router

import (
	"net/http"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/Dauka12/olympiad-backend/internal/handler"
	"github.com/Dauka12/olympiad-backend/internal/middleware"
	"github.com/Dauka12/olympiad-backend/internal/response"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Exam     *handler.ExamHandler
	Question *handler.QuestionHandler
	Stream   *handler.StreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/register", handlers.Auth.RegisterStudent)
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Session Group (Student JWT + Single Device) ────────────────
	sessionAPI := router.Group("/api/v1/exam/session")
	sessionAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		sessionAPI.POST("/start", handlers.Session.Start)
		sessionAPI.POST("/end/:session_id", handlers.Session.End)
		sessionAPI.GET("/student", handlers.Session.List)
		sessionAPI.POST("/student/:session_id", handlers.Session.Get)
		sessionAPI.GET("/student/:session_id/results", handlers.Session.Results)
		sessionAPI.POST("/answer/update", handlers.Session.UpdateAnswer)
		sessionAPI.DELETE("/answer/delete", handlers.Session.DeleteAnswer)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/exam/session/:session_id/stream", handlers.Stream.SessionStream)
	}

	// ─── 4. Admin Group (Admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		adminAPI.PUT("/exams/:exam_id", handlers.Exam.Update)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		adminAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)
		adminAPI.GET("/exams/:exam_id/results", handlers.Exam.Results)

		adminAPI.GET("/exams/:exam_id/questions", handlers.Question.List)
		adminAPI.POST("/exams/:exam_id/questions", handlers.Question.Add)
		adminAPI.PUT("/exams/:exam_id/questions/:question_id", handlers.Question.Update)
		adminAPI.DELETE("/exams/:exam_id/questions/:question_id", handlers.Question.Delete)

		adminAPI.GET("/categories", handlers.Exam.ListCategories)
	}

	return router
}

package app

import (
	"exam_tracker_backend/docs"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/middleware"
	"exam_tracker_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public catalogue and articles
	a.registerPublicRoutes(router, c)

	// 2. signed-in students
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. admins
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		public.GET("/questions", c.question.ListQuestions)
		public.GET("/questions/counts", c.question.Counts)
		public.GET("/subjects", c.question.Subjects)
		public.GET("/chapters", c.question.Chapters)
		public.GET("/topics", c.question.Topics)

		public.GET("/articles", c.article.ListPublished)
		public.GET("/articles/:slug", c.article.GetBySlug)
		public.GET("/article-categories", c.articleCategory.List)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	progress := rg.Group("/progress")
	{
		progress.POST("/answer", c.progress.RecordAnswer)
		progress.POST("/sync", c.progress.Sync)
		progress.POST("/flush", c.progress.Flush)
		progress.GET("/record", c.progress.Record)
		progress.GET("/chapter", c.progress.ChapterSummary)
		progress.GET("/subject", c.progress.SubjectSummary)
		progress.GET("/dashboard", c.progress.Dashboard)
	}

	rg.GET("/proxy/testbank/questions", c.testBank.Questions)
	rg.GET("/proxy/testbank/solutions/:id", c.testBank.Solution)

	rg.GET("/mock-tests", c.mockTest.List)
	rg.GET("/mock-tests/:id", c.mockTest.Get)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(&cfg.Auth), middleware.AdminMiddleware())
	{
		articles := admin.Group("/articles")
		{
			articles.GET("", c.article.AdminList)
			articles.POST("", c.article.Create)
			articles.POST("/images", c.article.UploadImage)

			articles.POST("/generate", c.generation.Generate)
			articles.POST("/generate/facts", c.generation.SearchFacts)
			articles.POST("/generate/draft", c.generation.Draft)
			articles.POST("/generate/persist", c.generation.Persist)

			articles.GET("/:id", c.article.AdminGet)
			articles.PUT("/:id", c.article.Update)
			articles.DELETE("/:id", c.article.Delete)
		}

		categories := admin.Group("/article-categories")
		{
			categories.POST("", c.articleCategory.Create)
			categories.PUT("/:id", c.articleCategory.Update)
			categories.DELETE("/:id", c.articleCategory.Delete)
		}

		mockTests := admin.Group("/mock-tests")
		{
			mockTests.POST("/manual", c.mockTest.CreateManual)
			mockTests.POST("/auto", c.mockTest.CreateAuto)
			mockTests.PUT("/:id", c.mockTest.Update)
			mockTests.DELETE("/:id", c.mockTest.Delete)
		}
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/ammiranda/medicine_service/cache"
	"github.com/ammiranda/medicine_service/config"
	"github.com/ammiranda/medicine_service/handlers"
	"github.com/ammiranda/medicine_service/logging"
	"github.com/ammiranda/medicine_service/repository"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func newBackend(cfgProvider config.Provider) (repository.Backend, error) {
	switch os.Getenv("DB_BACKEND") {
	case "sqlite":
		return repository.NewSQLiteRepository(os.Getenv("SQLITE_PATH")), nil
	case "memory":
		return repository.NewMemoryBackend(), nil
	default:
		return repository.NewPostgresRepository(cfgProvider)
	}
}

func main() {
	// Local overrides; missing file is fine.
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(config.Development)
	}

	logger, err := logging.New(env)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var cfgProvider config.Provider
	if os.Getenv("AWS_SECRET_NAME") != "" {
		cfgProvider, err = config.NewAWSSecretsProvider()
		if err != nil {
			logger.Fatal("failed to create secrets provider", zap.Error(err))
		}
	} else {
		cfgProvider = config.NewEnvProvider("")
	}

	backend, err := newBackend(cfgProvider)
	if err != nil {
		logger.Fatal("failed to create repository", zap.Error(err))
	}
	if err := backend.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize repository", zap.Error(err))
	}
	defer backend.Cleanup(ctx)

	if err := cache.Initialize(); err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}

	categoryHandler := handlers.NewTreeHandler(backend.Categories(), "categories", logger)
	atcHandler := handlers.NewTreeHandler(backend.ATCCodes(), "atc-codes", logger)
	medicineHandler := handlers.NewMedicineHandler(backend.Medicines(), logger)
	doseFormHandler := handlers.NewDoseFormHandler(backend.DoseForms(), logger)

	if env == string(config.Production) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logging.RequestLogger(logger), gin.Recovery())

	api := r.Group("/api")
	{
		registerTreeRoutes(api.Group("/categories"), categoryHandler)
		registerTreeRoutes(api.Group("/atc-codes"), atcHandler)

		medicines := api.Group("/medicines")
		{
			medicines.POST("", medicineHandler.CreateMedicine)
			medicines.GET("", medicineHandler.ListMedicines)
			medicines.GET("/:id", medicineHandler.GetMedicine)
			medicines.PUT("/:id", medicineHandler.UpdateMedicine)
			medicines.DELETE("/:id", medicineHandler.DeleteMedicine)
			medicines.POST("/:id/strengths", medicineHandler.AddStrength)
			medicines.GET("/:id/strengths", medicineHandler.ListStrengths)
			medicines.DELETE("/:id/strengths/:strengthId", medicineHandler.DeleteStrength)
		}

		doseForms := api.Group("/dose-forms")
		{
			doseForms.POST("", doseFormHandler.CreateDoseForm)
			doseForms.GET("", doseFormHandler.ListDoseForms)
			doseForms.GET("/:id", doseFormHandler.GetDoseForm)
			doseForms.PUT("/:id", doseFormHandler.UpdateDoseForm)
			doseForms.DELETE("/:id", doseFormHandler.DeleteDoseForm)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("starting server", zap.String("port", port), zap.String("env", env))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func registerTreeRoutes(g *gin.RouterGroup, h *handlers.TreeHandler) {
	g.POST("", h.CreateNode)
	g.GET("", h.GetForest)
	g.GET("/roots", h.GetRoots)
	g.GET("/:id", h.GetNode)
	g.GET("/:id/tree", h.GetSubtree)
	g.GET("/:id/ancestors", h.GetAncestors)
	g.GET("/:id/children", h.GetChildren)
	g.PUT("/:id", h.UpdateNode)
	g.POST("/:id/move", h.MoveNode)
	g.DELETE("/:id", h.DeleteNode)
	g.POST("/rebuild/:treeId", h.RebuildTree)
}

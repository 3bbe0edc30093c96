package routers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"gorm.io/gorm"

	adminControllers "brokerdesk/controllers/admin"
	firmControllers "brokerdesk/controllers/firm"
	memberControllers "brokerdesk/controllers/member"
	"brokerdesk/logger"
	"brokerdesk/metrics"
	"brokerdesk/middleware"
	"brokerdesk/routers/adminRoutes"
	"brokerdesk/routers/firmRoutes"
	"brokerdesk/routers/memberRoutes"
	"brokerdesk/services"
)

// Options configures NewApp.
type Options struct {
	JWTKey         string
	UploadDir      string
	AtomicCascades bool
}

// NewApp wires services, controllers and routes on top of db.
func NewApp(db *gorm.DB, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.Middleware())
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Database unavailable", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, "OK", nil)
	})

	memberService := services.NewMemberService(db, services.WithAtomicCascades(opts.AtomicCascades))
	firmService := services.NewFirmService(db)
	consistencyService := services.NewConsistencyService(db)

	api := app.Group("/api", middleware.JWTMiddleware(opts.JWTKey))
	memberRoutes.SetupMemberRoutes(api, memberControllers.NewMemberController(memberService), opts.UploadDir)
	firmRoutes.SetupFirmRoutes(api, firmControllers.NewFirmController(firmService))
	adminRoutes.SetupAdminRoutes(api, adminControllers.NewConsistencyController(consistencyService))

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return middleware.JsonResponse(c, fiberErr.Code, false, fiberErr.Message, nil)
	}
	return middleware.ErrorResponse(c, err)
}

package adminRoutes

import (
	"github.com/gofiber/fiber/v2"

	controller "brokerdesk/controllers/admin"
	"brokerdesk/middleware"
)

func SetupAdminRoutes(router fiber.Router, ctrl *controller.ConsistencyController) {
	admin := router.Group("/admin", middleware.RequireRole("ADMIN"))

	admin.Get("/consistency", ctrl.Audit)
	admin.Post("/consistency/repair", ctrl.Repair)
}

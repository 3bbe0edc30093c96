package firmRoutes

import (
	"github.com/gofiber/fiber/v2"

	controller "brokerdesk/controllers/firm"
	validator "brokerdesk/validators/firm"
)

func SetupFirmRoutes(router fiber.Router, ctrl *controller.FirmController) {
	firms := router.Group("/firms")

	firms.Post("/", validator.CreateFirm(), ctrl.CreateFirm)
	firms.Get("/", validator.ListFirms(), ctrl.ListFirms)
	firms.Get("/:id", ctrl.GetFirm)
}

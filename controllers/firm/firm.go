package firmControllers

import (
	"github.com/gofiber/fiber/v2"

	"brokerdesk/middleware"
	"brokerdesk/models"
	"brokerdesk/services"
	validator "brokerdesk/validators/firm"
)

type FirmController struct {
	firms *services.FirmService
}

func NewFirmController(firms *services.FirmService) *FirmController {
	return &FirmController{firms: firms}
}

func (fc *FirmController) CreateFirm(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(string)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	reqData, ok := c.Locals("validatedFirm").(*models.FirmInput)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	firm, message, err := fc.firms.Create(c.UserContext(), *reqData, userID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, message, firm)
}

func (fc *FirmController) ListFirms(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedList").(*validator.ListFirmsRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request!", nil)
	}

	firms, total, err := fc.firms.List(c.UserContext(), reqData.Filter(), reqData.Window())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.ListResponse(c, firms, total)
}

func (fc *FirmController) GetFirm(c *fiber.Ctx) error {
	firm, err := fc.firms.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "", firm)
}

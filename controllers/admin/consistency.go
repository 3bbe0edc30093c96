package adminControllers

import (
	"github.com/gofiber/fiber/v2"

	"brokerdesk/middleware"
	"brokerdesk/services"
)

type ConsistencyController struct {
	consistency *services.ConsistencyService
}

func NewConsistencyController(consistency *services.ConsistencyService) *ConsistencyController {
	return &ConsistencyController{consistency: consistency}
}

func (cc *ConsistencyController) Audit(c *fiber.Ctx) error {
	report, err := cc.consistency.Audit(c.UserContext())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "", report)
}

func (cc *ConsistencyController) Repair(c *fiber.Ctx) error {
	report, err := cc.consistency.Repair(c.UserContext())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Firm member sets rebuilt", report)
}

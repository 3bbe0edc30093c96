package firmValidators

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"brokerdesk/middleware"
	"brokerdesk/models"
	"brokerdesk/stores"
)

type ListFirmsRequest struct {
	FirmType *string `query:"firmType"`
	IsActive *bool   `query:"isActive"`
	Search   string  `query:"search"`
	Page     *int    `query:"page"`
	PerPage  *int    `query:"perPage"`
}

// Filter converts the query into a store filter. FirmType has already been
// checked by ListFirms.
func (r *ListFirmsRequest) Filter() stores.FirmFilter {
	filter := stores.FirmFilter{IsActive: r.IsActive, Search: r.Search}
	if r.FirmType != nil {
		filter.FirmType, _ = models.ParseFirmType(*r.FirmType)
	}
	return filter
}

func (r *ListFirmsRequest) Window() stores.Page {
	if r.Page == nil || r.PerPage == nil {
		return stores.Page{}
	}
	return stores.Page{Page: *r.Page, PerPage: *r.PerPage}
}

func CreateFirm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(models.FirmInput)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		reqData.Name = strings.TrimSpace(reqData.Name)
		if reqData.Name == "" {
			errors["name"] = "name is required"
		}
		if _, err := models.ParseFirmType(reqData.FirmType); err != nil {
			errors["firmType"] = "Invalid firm type"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedFirm", reqData)
		return c.Next()
	}
}

func ListFirms() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ListFirmsRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}

		errors := make(map[string]string)
		if reqData.FirmType != nil {
			if _, err := models.ParseFirmType(*reqData.FirmType); err != nil {
				errors["firmType"] = "Invalid firm type! Must be one of: broker, investor."
			}
		}
		if reqData.Page != nil && *reqData.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}
		if reqData.PerPage != nil && *reqData.PerPage < 1 {
			errors["perPage"] = "perPage must be greater than 0!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedList", reqData)
		return c.Next()
	}
}

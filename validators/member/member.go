package memberValidators

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"brokerdesk/middleware"
	"brokerdesk/models"
	"brokerdesk/stores"
)

type ListMembersRequest struct {
	MemberType string `query:"memberType"`
	Page       *int   `query:"page"`
	PerPage    *int   `query:"perPage"`
}

// Window returns the pagination window, empty unless both page and perPage
// were sent.
func (r *ListMembersRequest) Window() stores.Page {
	if r.Page == nil || r.PerPage == nil {
		return stores.Page{}
	}
	return stores.Page{Page: *r.Page, PerPage: *r.PerPage}
}

type CreateMemberRequest struct {
	FirmID string `json:"-"`
	Type   string `json:"type"`
	models.MemberInput
}

type UpdateMemberRequest struct {
	MemberType string `json:"memberType"`
	models.MemberInput
}

type MoveMemberRequest struct {
	TargetFirmID     string `json:"targetFirmId"`
	TargetMemberType string `json:"targetMemberType"`
	models.MemberInput
}

func ListMembers() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ListMembersRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}

		errors := make(map[string]string)
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

func CreateMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CreateMemberRequest)
		if err := parseBody(c, reqData); err != nil {
			middleware.DiscardUpload(c, nil)
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		reqData.FirmID = strings.TrimSpace(c.Query("firmId"))

		errors := make(map[string]string)
		if reqData.FirmID == "" {
			errors["firmId"] = "Please provide a firmId"
		}
		if _, err := models.ParseMemberType(reqData.Type); err != nil {
			errors["type"] = "Invalid member type"
		}
		if len(errors) > 0 {
			middleware.DiscardUpload(c, nil)
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedMember", reqData)
		return c.Next()
	}
}

func UpdateMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(UpdateMemberRequest)
		if err := parseBody(c, reqData); err != nil {
			middleware.DiscardUpload(c, nil)
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if _, err := models.ParseMemberType(reqData.MemberType); err != nil {
			middleware.DiscardUpload(c, nil)
			return middleware.ValidationErrorResponse(c, map[string]string{
				"memberType": "Invalid member type",
			})
		}

		c.Locals("validatedMember", reqData)
		return c.Next()
	}
}

func MoveMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(MoveMemberRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		reqData.TargetFirmID = strings.TrimSpace(reqData.TargetFirmID)
		if reqData.TargetFirmID == "" {
			errors["targetFirmId"] = "targetFirmId is required"
		}
		if _, err := models.ParseMemberType(reqData.TargetMemberType); err != nil {
			errors["targetMemberType"] = "Invalid member type"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedMove", reqData)
		return c.Next()
	}
}

func CreateInteraction() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(models.InteractionInput)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Subject = strings.TrimSpace(reqData.Subject)
		if reqData.Subject == "" {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"subject": "subject is required",
			})
		}

		c.Locals("validatedInteraction", reqData)
		return c.Next()
	}
}

// parseBody reads a JSON body, or for multipart requests the JSON document
// in the "data" form field next to the uploaded file.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		data := c.FormValue("data")
		if data == "" {
			return nil
		}
		return c.App().Config().JSONDecoder([]byte(data), out)
	}
	return c.BodyParser(out)
}

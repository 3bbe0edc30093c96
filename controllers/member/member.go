package memberControllers

import (
	"github.com/gofiber/fiber/v2"

	"brokerdesk/middleware"
	"brokerdesk/models"
	"brokerdesk/services"
	validator "brokerdesk/validators/member"
)

type MemberController struct {
	members *services.MemberService
}

func NewMemberController(members *services.MemberService) *MemberController {
	return &MemberController{members: members}
}

func (mc *MemberController) ListMembers(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedList").(*validator.ListMembersRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request!", nil)
	}

	members, total, err := mc.members.ListMembers(c.UserContext(), reqData.MemberType, reqData.Window())
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.ListResponse(c, members, total)
}

func (mc *MemberController) CreateMember(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedMember").(*validator.CreateMemberRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	member, message, err := mc.members.Create(c.UserContext(), reqData.FirmID, reqData.Type, reqData.MemberInput, middleware.UploadedFile(c))
	if err != nil {
		middleware.DiscardUpload(c, err)
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, message, member)
}

func (mc *MemberController) ListMembersByFirm(c *fiber.Ctx) error {
	members, err := mc.members.ListMembersByFirm(c.UserContext(), c.Params("firmId"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "", members)
}

func (mc *MemberController) GetMember(c *fiber.Ctx) error {
	member, err := mc.members.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "", member)
}

func (mc *MemberController) UpdateMember(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedMember").(*validator.UpdateMemberRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	member, message, err := mc.members.Update(c.UserContext(), c.Params("id"), reqData.MemberType, reqData.MemberInput, middleware.UploadedFile(c))
	if err != nil {
		middleware.DiscardUpload(c, err)
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, member)
}

func (mc *MemberController) DeleteMember(c *fiber.Ctx) error {
	message, err := mc.members.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, nil)
}

func (mc *MemberController) MoveMember(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedMove").(*validator.MoveMemberRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	member, message, err := mc.members.Move(c.UserContext(), c.Params("id"), reqData.TargetFirmID, reqData.TargetMemberType, reqData.MemberInput)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, member)
}

func (mc *MemberController) CreateInteraction(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedInteraction").(*models.InteractionInput)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	interaction, err := mc.members.AddInteraction(c.UserContext(), c.Params("id"), *reqData)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Interaction logged successfully", interaction)
}

func (mc *MemberController) ListInteractions(c *fiber.Ctx) error {
	interactions, err := mc.members.ListInteractions(c.UserContext(), c.Params("id"))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "", interactions)
}

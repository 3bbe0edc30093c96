package memberRoutes

import (
	"github.com/gofiber/fiber/v2"

	controller "brokerdesk/controllers/member"
	"brokerdesk/middleware"
	validator "brokerdesk/validators/member"
)

func SetupMemberRoutes(router fiber.Router, ctrl *controller.MemberController, uploadDir string) {
	members := router.Group("/members")
	upload := middleware.FileUpload("businessCard", uploadDir)

	members.Get("/", validator.ListMembers(), ctrl.ListMembers)
	members.Post("/", upload, validator.CreateMember(), ctrl.CreateMember)
	members.Get("/firm/:firmId", ctrl.ListMembersByFirm)
	members.Get("/:id", ctrl.GetMember)
	members.Put("/:id", upload, validator.UpdateMember(), ctrl.UpdateMember)
	members.Delete("/:id", ctrl.DeleteMember)
	members.Put("/:id/move", validator.MoveMember(), ctrl.MoveMember)
	members.Post("/:id/interactions", validator.CreateInteraction(), ctrl.CreateInteraction)
	members.Get("/:id/interactions", ctrl.ListInteractions)
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"brokerdesk/apperror"
	"brokerdesk/logger"
	"brokerdesk/models"
	"brokerdesk/stores"
	"brokerdesk/utils"
)

// Cascade operation and step names, as reported in CascadeError and metrics.
const (
	OpCreateMember = "create-member"
	OpUpdateMember = "update-member"
	OpDeleteMember = "delete-member"
	OpMoveMember   = "move-member"

	StepInsertMember          = "insert-member"
	StepLinkFirm              = "link-firm"
	StepPersistBusinessCard   = "persist-business-card"
	StepDeleteOldBusinessCard = "delete-old-business-card"
	StepSaveMember            = "save-member"
	StepUnlinkFirm            = "unlink-firm"
	StepDeleteInteractions    = "delete-interactions"
	StepDeleteBusinessCard    = "delete-business-card"
	StepDeleteMember          = "delete-member"
	StepDeleteOldMember       = "delete-old-member"
	StepRepointInteractions   = "repoint-interactions"
	StepRepointBusinessCard   = "repoint-business-card"
	StepUnlinkSourceFirm      = "unlink-source-firm"
	StepLinkTargetFirm        = "link-target-firm"
)

type Option func(*MemberService)

// WithAtomicCascades runs every cascade inside one database transaction.
func WithAtomicCascades(atomic bool) Option {
	return func(s *MemberService) {
		s.runner.atomic = atomic
	}
}

// WithClock replaces time.Now for firm history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemberService) {
		s.now = now
	}
}

func withStepHook(hook stepHook) Option {
	return func(s *MemberService) {
		s.runner.beforeStep = hook
	}
}

// MemberService keeps members, firm member sets, interactions and business
// card files consistent with each other.
type MemberService struct {
	stores *stores.Stores
	runner *cascadeRunner
	now    func() time.Time
}

func NewMemberService(db *gorm.DB, opts ...Option) *MemberService {
	s := &MemberService{
		stores: stores.New(db),
		runner: &cascadeRunner{db: db},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a member of either type.
func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	return s.stores.Members.FindByID(ctx, id)
}

// Create adds a member of memberType to firmID. card, when given, is an
// uploaded but unsaved file that becomes the member's business card.
func (s *MemberService) Create(ctx context.Context, firmID, memberType string, input models.MemberInput, card *models.File) (*models.Member, string, error) {
	if strings.TrimSpace(firmID) == "" {
		return nil, "", apperror.Validation("Please provide a firmId")
	}
	firm, err := s.stores.Firms.FindByID(ctx, firmID)
	if err != nil {
		return nil, "", err
	}
	mt, err := models.ParseMemberType(memberType)
	if err != nil {
		return nil, "", err
	}

	member := &models.Member{
		ID:          models.NewID(),
		MemberType:  mt,
		FirmID:      firm.ID,
		FirmHistory: datatypes.JSONSlice[models.FirmHistoryEntry]{{Firm: firm.ID, DateOfJoining: s.now()}},
	}
	if err := input.ApplyTo(member); err != nil {
		return nil, "", err
	}
	if card != nil {
		attachCard(card, member)
	}
	if err := s.checkMember(ctx, member); err != nil {
		return nil, "", err
	}

	steps := []step{
		{StepInsertMember, func(ctx context.Context, st *stores.Stores) error {
			return st.Members.Create(ctx, member)
		}},
		{StepLinkFirm, func(ctx context.Context, st *stores.Stores) error {
			return st.Firms.AddMemberLink(ctx, firm.ID, member.ID)
		}},
	}
	if card != nil {
		steps = append(steps, step{StepPersistBusinessCard, func(ctx context.Context, st *stores.Stores) error {
			return st.Files.Save(ctx, card)
		}})
	}
	if err := s.runner.run(ctx, OpCreateMember, steps); err != nil {
		return nil, "", err
	}

	logger.FromContext(ctx).Info("Member created",
		zap.String("member_id", member.ID),
		zap.String("firm_id", firm.ID),
		zap.String("member_type", string(mt)),
	)
	return member, fmt.Sprintf("Member with name %s created successfully for %s", member.Name, firm.Name), nil
}

// Update applies patch to the member stored under memberType. A new card
// replaces the previous business card, which is deleted first.
func (s *MemberService) Update(ctx context.Context, id, memberType string, patch models.MemberInput, card *models.File) (*models.Member, string, error) {
	mt, err := models.ParseMemberType(memberType)
	if err != nil {
		return nil, "", err
	}
	member, err := s.stores.Members.FindByIDAndType(ctx, id, mt)
	if err != nil {
		return nil, "", err
	}
	if err := patch.ApplyTo(member); err != nil {
		return nil, "", err
	}
	previous := member.BusinessCard
	if card != nil {
		attachCard(card, member)
	}
	if err := s.checkMember(ctx, member, member.ID); err != nil {
		return nil, "", err
	}

	var (
		steps   []step
		removed []string
	)
	if card != nil {
		if previous != nil {
			oldID := *previous
			steps = append(steps, step{StepDeleteOldBusinessCard, func(ctx context.Context, st *stores.Stores) error {
				return s.deleteCard(ctx, st, oldID, &removed)
			}})
		}
		steps = append(steps, step{StepPersistBusinessCard, func(ctx context.Context, st *stores.Stores) error {
			return st.Files.Save(ctx, card)
		}})
	}
	steps = append(steps, step{StepSaveMember, func(ctx context.Context, st *stores.Stores) error {
		return st.Members.Save(ctx, member)
	}})
	err = s.runner.run(ctx, OpUpdateMember, steps)
	s.removeCardFiles(ctx, removed, err)
	if err != nil {
		return nil, "", err
	}
	return member, fmt.Sprintf("Member with name %s updated successfully", member.Name), nil
}

// Delete removes a member together with its firm link, interactions and
// business card.
func (s *MemberService) Delete(ctx context.Context, id string) (string, error) {
	member, err := s.stores.Members.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	var removed []string
	steps := []step{
		{StepUnlinkFirm, func(ctx context.Context, st *stores.Stores) error {
			return st.Firms.RemoveMemberLink(ctx, member.FirmID, member.ID)
		}},
		{StepDeleteInteractions, func(ctx context.Context, st *stores.Stores) error {
			_, err := st.Interactions.DeleteByMember(ctx, member.ID)
			return err
		}},
	}
	if member.BusinessCard != nil {
		cardID := *member.BusinessCard
		steps = append(steps, step{StepDeleteBusinessCard, func(ctx context.Context, st *stores.Stores) error {
			return s.deleteCard(ctx, st, cardID, &removed)
		}})
	}
	steps = append(steps, step{StepDeleteMember, func(ctx context.Context, st *stores.Stores) error {
		return st.Members.Delete(ctx, member.ID)
	}})
	err = s.runner.run(ctx, OpDeleteMember, steps)
	s.removeCardFiles(ctx, removed, err)
	if err != nil {
		return "", err
	}

	logger.FromContext(ctx).Info("Member deleted", zap.String("member_id", member.ID))
	return fmt.Sprintf("Member with name %s deleted successfully", member.Name), nil
}

// Move re-creates the member under targetMemberType in another firm and
// points every reference to the old member at the new one. The old id
// stops resolving.
func (s *MemberService) Move(ctx context.Context, id, targetFirmID, targetMemberType string, patch models.MemberInput) (*models.Member, string, error) {
	target, err := s.stores.Firms.FindByID(ctx, targetFirmID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, "", apperror.NotFound("Target firm not found")
		}
		return nil, "", err
	}
	source, err := s.stores.Members.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if source.FirmID == target.ID {
		return nil, "", apperror.Validation("Member already in target firm")
	}
	mt, err := models.ParseMemberType(targetMemberType)
	if err != nil {
		return nil, "", err
	}

	moved := source.Retype(mt)
	moved.ID = models.NewID()
	moved.FirmID = target.ID
	moved.FirmHistory = append(moved.FirmHistory, models.FirmHistoryEntry{Firm: target.ID, DateOfJoining: s.now()})
	if err := patch.ApplyTo(moved); err != nil {
		return nil, "", err
	}
	if err := s.checkMember(ctx, moved, source.ID); err != nil {
		return nil, "", err
	}

	steps := []step{
		{StepInsertMember, func(ctx context.Context, st *stores.Stores) error {
			return st.Members.CreateReplacement(ctx, moved, source.ID)
		}},
		{StepDeleteOldMember, func(ctx context.Context, st *stores.Stores) error {
			return st.Members.Delete(ctx, source.ID)
		}},
		{StepRepointInteractions, func(ctx context.Context, st *stores.Stores) error {
			_, err := st.Interactions.RepointMember(ctx, source.ID, moved.ID)
			return err
		}},
	}
	if source.BusinessCard != nil {
		cardID := *source.BusinessCard
		steps = append(steps, step{StepRepointBusinessCard, func(ctx context.Context, st *stores.Stores) error {
			found, err := st.Files.RepointMember(ctx, cardID, moved.ID)
			if err == nil && !found {
				logger.FromContext(ctx).Warn("Business card file missing", zap.String("file_id", cardID))
			}
			return err
		}})
	}
	steps = append(steps,
		step{StepUnlinkSourceFirm, func(ctx context.Context, st *stores.Stores) error {
			return st.Firms.RemoveMemberLink(ctx, source.FirmID, source.ID)
		}},
		step{StepLinkTargetFirm, func(ctx context.Context, st *stores.Stores) error {
			return st.Firms.AddMemberLink(ctx, target.ID, moved.ID)
		}},
	)
	if err := s.runner.run(ctx, OpMoveMember, steps); err != nil {
		return nil, "", err
	}

	logger.FromContext(ctx).Info("Member moved",
		zap.String("old_member_id", source.ID),
		zap.String("member_id", moved.ID),
		zap.String("from_firm_id", source.FirmID),
		zap.String("to_firm_id", target.ID),
	)
	return moved, fmt.Sprintf("Member with name %s moved successfully to %s", source.Name, target.Name), nil
}

// ListMembers returns one page of members of memberType and the number of
// such members.
func (s *MemberService) ListMembers(ctx context.Context, memberType string, page stores.Page) ([]*models.Member, int64, error) {
	mt, err := models.ParseMemberType(memberType)
	if err != nil {
		return nil, 0, err
	}
	return s.stores.Members.ListByType(ctx, mt, page)
}

// ListMembersByFirm returns the members whose current firm is firmID.
func (s *MemberService) ListMembersByFirm(ctx context.Context, firmID string) ([]*models.Member, error) {
	exists, err := s.stores.Firms.Exists(ctx, firmID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound("Firm not found")
	}
	return s.stores.Members.ListByFirm(ctx, firmID)
}

// AddInteraction logs an interaction against a member's current firm.
func (s *MemberService) AddInteraction(ctx context.Context, memberID string, input models.InteractionInput) (*models.Interaction, error) {
	member, err := s.stores.Members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	interaction := &models.Interaction{
		MemberID:   member.ID,
		FirmID:     member.FirmID,
		Subject:    input.Subject,
		Notes:      input.Notes,
		Payload:    input.Payload,
		OccurredAt: s.now(),
	}
	if input.OccurredAt != nil {
		occurredAt, err := models.ParseDate("occurredAt", *input.OccurredAt)
		if err != nil {
			return nil, err
		}
		interaction.OccurredAt = occurredAt
	}
	if err := s.stores.Interactions.Create(ctx, interaction); err != nil {
		return nil, err
	}
	return interaction, nil
}

func (s *MemberService) ListInteractions(ctx context.Context, memberID string) ([]models.Interaction, error) {
	if _, err := s.stores.Members.FindByID(ctx, memberID); err != nil {
		return nil, err
	}
	return s.stores.Interactions.ListByMember(ctx, memberID)
}

// checkMember rejects an invalid member or a taken email before any write.
func (s *MemberService) checkMember(ctx context.Context, member *models.Member, excludeIDs ...string) error {
	member.Normalize()
	if err := member.Validate(); err != nil {
		return err
	}
	taken, err := s.stores.Members.EmailTaken(ctx, member.Email, excludeIDs...)
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict(fmt.Sprintf("Member with email %s already exists", member.Email))
	}
	return nil
}

// deleteCard deletes a business card record and queues its stored upload in
// removed. A record that is already gone is logged and skipped.
func (s *MemberService) deleteCard(ctx context.Context, st *stores.Stores, fileID string, removed *[]string) error {
	file, err := st.Files.FindByID(ctx, fileID)
	if apperror.Is(err, apperror.KindNotFound) {
		logger.FromContext(ctx).Warn("Business card file missing", zap.String("file_id", fileID))
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := st.Files.DeleteIfExists(ctx, fileID)
	if err != nil {
		return err
	}
	if !deleted {
		logger.FromContext(ctx).Warn("Business card file missing", zap.String("file_id", fileID))
		return nil
	}
	if file.Path != "" {
		*removed = append(*removed, file.Path)
	}
	return nil
}

// removeCardFiles deletes the uploads of business card records removed by a
// cascade. An atomic cascade that failed rolled the records back, so their
// uploads stay. Removal failures are logged only.
func (s *MemberService) removeCardFiles(ctx context.Context, paths []string, cascadeErr error) {
	if cascadeErr != nil && s.runner.atomic {
		return
	}
	for _, path := range paths {
		if err := utils.RemoveUploadedFile(path); err != nil {
			logger.FromContext(ctx).Warn("Failed to remove business card upload",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
}

func attachCard(card *models.File, member *models.Member) {
	if card.ID == "" {
		card.ID = models.NewID()
	}
	card.FirmID = member.FirmID
	memberID := member.ID
	card.MemberID = &memberID
	cardID := card.ID
	member.BusinessCard = &cardID
}

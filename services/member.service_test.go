package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"brokerdesk/apperror"
	"brokerdesk/models"
	"brokerdesk/stores"
	"brokerdesk/testutil"
)

type fixture struct {
	db     *gorm.DB
	stores *stores.Stores
	svc    *MemberService
	firms  *FirmService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &fixture{
		db:     db,
		stores: stores.New(db),
		svc:    NewMemberService(db, opts...),
		firms:  NewFirmService(db),
	}
}

func (f *fixture) brokerFirm(t *testing.T, name string) *models.Firm {
	t.Helper()
	firm, _, err := f.firms.Create(context.Background(), models.FirmInput{
		FirmType:     "broker",
		Name:         name,
		LocationType: "Domestic",
		Sectors:      []string{"Banking"},
	}, "user-1")
	require.NoError(t, err)
	return firm
}

func (f *fixture) broker(t *testing.T, firmID, email string, card *models.File) *models.Member {
	t.Helper()
	member, _, err := f.svc.Create(context.Background(), firmID, "broker", brokerInput(email), card)
	require.NoError(t, err)
	return member
}

func (f *fixture) interactions(t *testing.T, memberID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.svc.AddInteraction(context.Background(), memberID, models.InteractionInput{
			Subject: fmt.Sprintf("Call %d", i),
		})
		require.NoError(t, err)
	}
}

func (f *fixture) memberIDs(t *testing.T, firmID string) []string {
	t.Helper()
	ids, err := f.stores.Firms.MemberIDs(context.Background(), firmID)
	require.NoError(t, err)
	return ids
}

func brokerInput(email string) models.MemberInput {
	return models.MemberInput{
		Name:        strPtr("Asha Rao"),
		Email:       strPtr(email),
		Designation: strPtr("Analyst"),
		Sectors:     []string{"Energy"},
	}
}

// storedCard writes an upload to disk and returns its unsaved file record.
func storedCard(t *testing.T, name string) *models.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("card"), 0o644))
	return &models.File{FileName: name, Path: path}
}

func requireGone(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "%s should be removed", path)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestCreateMember_RecordsHistoryAndLinksFirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")

	before := time.Now()
	member, msg, err := f.svc.Create(ctx, firm.ID, "broker", brokerInput("asha@example.com"), &models.File{FileName: "card.png"})
	after := time.Now()
	require.NoError(t, err)
	require.Equal(t, "Member with name Asha Rao created successfully for Acme Capital", msg)

	require.Len(t, member.FirmHistory, 1)
	entry := member.FirmHistory[0]
	require.Equal(t, firm.ID, entry.Firm)
	require.False(t, entry.DateOfJoining.Before(before))
	require.False(t, entry.DateOfJoining.After(after))

	require.Equal(t, []string{member.ID}, f.memberIDs(t, firm.ID))

	require.NotNil(t, member.BusinessCard)
	card, err := f.stores.Files.FindByID(ctx, *member.BusinessCard)
	require.NoError(t, err)
	require.Equal(t, member.ID, *card.MemberID)
	require.Equal(t, firm.ID, card.FirmID)
}

func TestCreateMember_RejectionsWriteNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	f.broker(t, firm.ID, "asha@example.com", nil)

	_, _, err := f.svc.Create(ctx, "", "broker", brokerInput("x@example.com"), nil)
	require.True(t, apperror.Is(err, apperror.KindValidation))

	_, _, err = f.svc.Create(ctx, "missing", "broker", brokerInput("x@example.com"), nil)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	_, _, err = f.svc.Create(ctx, firm.ID, "trader", brokerInput("x@example.com"), nil)
	require.True(t, apperror.Is(err, apperror.KindValidation))

	_, _, err = f.svc.Create(ctx, firm.ID, "investor", brokerInput("x@example.com"), nil)
	require.True(t, apperror.Is(err, apperror.KindValidation), "investor needs fund size and region focus")

	_, _, err = f.svc.Create(ctx, firm.ID, "broker", brokerInput("ASHA@example.com"), &models.File{})
	require.True(t, apperror.Is(err, apperror.KindConflict))

	require.Len(t, f.memberIDs(t, firm.ID), 1)
	var files int64
	require.NoError(t, f.db.Model(&models.File{}).Count(&files).Error)
	require.Zero(t, files)
}

func TestUpdateMember_ReplacesBusinessCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	member := f.broker(t, firm.ID, "asha@example.com", &models.File{FileName: "old.png"})
	oldCard := *member.BusinessCard

	updated, msg, err := f.svc.Update(ctx, member.ID, "broker", models.MemberInput{
		Designation: strPtr("Partner"),
	}, &models.File{FileName: "new.png"})
	require.NoError(t, err)
	require.Equal(t, "Member with name Asha Rao updated successfully", msg)
	require.NotEqual(t, oldCard, *updated.BusinessCard)

	_, err = f.stores.Files.FindByID(ctx, oldCard)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	got, err := f.svc.Get(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, "Partner", got.Designation)
	require.Equal(t, *updated.BusinessCard, *got.BusinessCard)
	require.Equal(t, member.FirmHistory[0].Firm, got.FirmHistory[0].Firm)
}

func TestUpdateMember_WrongTypeIsNotFound(t *testing.T) {
	f := newFixture(t)
	firm := f.brokerFirm(t, "Acme Capital")
	member := f.broker(t, firm.ID, "asha@example.com", nil)

	_, _, err := f.svc.Update(context.Background(), member.ID, "investor", models.MemberInput{}, nil)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	_, _, err = f.svc.Update(context.Background(), "missing", "broker", models.MemberInput{}, nil)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDeleteMember_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	member := f.broker(t, firm.ID, "asha@example.com", &models.File{})
	f.interactions(t, member.ID, 3)

	msg, err := f.svc.Delete(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, "Member with name Asha Rao deleted successfully", msg)

	count, err := f.stores.Interactions.CountByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = f.stores.Files.FindByID(ctx, *member.BusinessCard)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	require.Empty(t, f.memberIDs(t, firm.ID))

	_, err = f.svc.Delete(ctx, member.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestMoveMember_RejectsSameFirm(t *testing.T) {
	f := newFixture(t)
	firm := f.brokerFirm(t, "Acme Capital")
	member := f.broker(t, firm.ID, "asha@example.com", nil)

	_, _, err := f.svc.Move(context.Background(), member.ID, firm.ID, "BrokerMember", models.MemberInput{})
	require.True(t, apperror.Is(err, apperror.KindValidation))
	require.Equal(t, "Member already in target firm", err.Error())

	_, _, err = f.svc.Move(context.Background(), member.ID, "missing", "BrokerMember", models.MemberInput{})
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	require.Equal(t, "Target firm not found", err.Error())
}

func TestMoveMember_ReplacesAndRepoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.brokerFirm(t, "Acme Capital")
	target := f.brokerFirm(t, "Northwind Funds")
	member := f.broker(t, source.ID, "asha@example.com", &models.File{})
	f.interactions(t, member.ID, 4)

	moved, msg, err := f.svc.Move(ctx, member.ID, target.ID, "InvestorMember", models.MemberInput{
		FundSize:    &models.FundSize{IndianExposure: floatPtr(250)},
		RegionFocus: []string{"APAC"},
	})
	require.NoError(t, err)
	require.Equal(t, "Member with name Asha Rao moved successfully to Northwind Funds", msg)
	require.NotEqual(t, member.ID, moved.ID)
	require.Equal(t, models.MemberTypeInvestor, moved.MemberType)
	require.Nil(t, moved.Broker)
	require.Equal(t, []string{"Energy"}, moved.Investor.Sectors)

	_, err = f.svc.Get(ctx, member.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	got, err := f.svc.Get(ctx, moved.ID)
	require.NoError(t, err)
	require.Len(t, got.FirmHistory, len(member.FirmHistory)+1)
	require.Equal(t, source.ID, got.FirmHistory[0].Firm)
	require.Equal(t, target.ID, got.FirmHistory[1].Firm)
	require.Len(t, got.Interactions, 4)
	require.Equal(t, member.Email, got.Email)

	old, err := f.stores.Interactions.CountByMember(ctx, member.ID)
	require.NoError(t, err)
	require.Zero(t, old)

	card, err := f.stores.Files.FindByID(ctx, *member.BusinessCard)
	require.NoError(t, err)
	require.Equal(t, moved.ID, *card.MemberID)

	require.Empty(t, f.memberIDs(t, source.ID))
	require.Equal(t, []string{moved.ID}, f.memberIDs(t, target.ID))
}

func TestMoveMember_PartialFailureIsReported(t *testing.T) {
	injected := errors.New("connection reset")
	f := newFixture(t, withStepHook(func(_ context.Context, _ *stores.Stores, op, name string) error {
		if op == OpMoveMember && name == StepRepointInteractions {
			return injected
		}
		return nil
	}))
	ctx := context.Background()
	source := f.brokerFirm(t, "Acme Capital")
	target := f.brokerFirm(t, "Northwind Funds")
	member := f.broker(t, source.ID, "asha@example.com", nil)
	f.interactions(t, member.ID, 2)

	_, _, err := f.svc.Move(ctx, member.ID, target.ID, "BrokerMember", models.MemberInput{})
	var cascadeErr *apperror.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	require.Equal(t, OpMoveMember, cascadeErr.Operation)
	require.Equal(t, []string{StepInsertMember, StepDeleteOldMember}, cascadeErr.Completed)
	require.Equal(t, StepRepointInteractions, cascadeErr.Failed)
	require.True(t, errors.Is(err, injected))

	_, err = f.svc.Get(ctx, member.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	audit := NewConsistencyService(f.db)
	report, err := audit.Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Count(IssueOrphanInteraction))
	require.Equal(t, 1, report.Count(IssueDanglingLink))
	require.Equal(t, 1, report.Count(IssueMissingLink))

	report, err = audit.Repair(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Count(IssueDanglingLink))
	require.Zero(t, report.Count(IssueMissingLink))
	require.Equal(t, 2, report.Count(IssueOrphanInteraction))
}

func TestMoveMember_AtomicModeRollsBack(t *testing.T) {
	injected := errors.New("connection reset")
	f := newFixture(t, WithAtomicCascades(true), withStepHook(func(_ context.Context, _ *stores.Stores, op, name string) error {
		if op == OpMoveMember && name == StepUnlinkSourceFirm {
			return injected
		}
		return nil
	}))
	ctx := context.Background()
	source := f.brokerFirm(t, "Acme Capital")
	target := f.brokerFirm(t, "Northwind Funds")
	member := f.broker(t, source.ID, "asha@example.com", nil)
	f.interactions(t, member.ID, 2)

	_, _, err := f.svc.Move(ctx, member.ID, target.ID, "BrokerMember", models.MemberInput{})
	require.ErrorIs(t, err, injected)
	var cascadeErr *apperror.CascadeError
	require.False(t, errors.As(err, &cascadeErr))

	got, err := f.svc.Get(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, got.Interactions, 2)
	require.Equal(t, []string{member.ID}, f.memberIDs(t, source.ID))
	require.Empty(t, f.memberIDs(t, target.ID))

	var members int64
	require.NoError(t, f.db.Model(&models.Member{}).Count(&members).Error)
	require.EqualValues(t, 1, members)
}

func TestMoveMember_LostDeleteRaceIsSurfaced(t *testing.T) {
	var sourceID string
	f := newFixture(t, withStepHook(func(ctx context.Context, s *stores.Stores, op, name string) error {
		if op == OpMoveMember && name == StepDeleteOldMember {
			// A concurrent move removes the source member first.
			return s.Members.Delete(ctx, sourceID)
		}
		return nil
	}))
	ctx := context.Background()
	source := f.brokerFirm(t, "Acme Capital")
	target := f.brokerFirm(t, "Northwind Funds")
	sourceID = f.broker(t, source.ID, "asha@example.com", nil).ID

	_, _, err := f.svc.Move(ctx, sourceID, target.ID, "BrokerMember", models.MemberInput{})
	var cascadeErr *apperror.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	require.Equal(t, StepDeleteOldMember, cascadeErr.Failed)
	require.Equal(t, []string{StepInsertMember}, cascadeErr.Completed)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestMoveMember_CancelledContextStillCompletes(t *testing.T) {
	var cancel context.CancelFunc
	f := newFixture(t, withStepHook(func(_ context.Context, _ *stores.Stores, op, name string) error {
		if op == OpMoveMember && name == StepDeleteOldMember {
			cancel()
		}
		return nil
	}))
	source := f.brokerFirm(t, "Acme Capital")
	target := f.brokerFirm(t, "Northwind Funds")
	member := f.broker(t, source.ID, "asha@example.com", nil)

	var ctx context.Context
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	moved, _, err := f.svc.Move(ctx, member.ID, target.ID, "BrokerMember", models.MemberInput{})
	require.NoError(t, err)
	require.Equal(t, []string{moved.ID}, f.memberIDs(t, target.ID))
}

func TestListMembers_FiltersByTypeAndCountsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	for i := 0; i < 12; i++ {
		f.broker(t, firm.ID, fmt.Sprintf("b%d@example.com", i), nil)
	}
	for i := 0; i < 3; i++ {
		input := brokerInput(fmt.Sprintf("i%d@example.com", i))
		input.FundSize = &models.FundSize{IndianExposure: floatPtr(10)}
		input.RegionFocus = []string{"EMEA"}
		_, _, err := f.svc.Create(ctx, firm.ID, "investor", input, nil)
		require.NoError(t, err)
	}

	members, total, err := f.svc.ListMembers(ctx, "broker", stores.Page{Page: 2, PerPage: 5})
	require.NoError(t, err)
	require.Len(t, members, 5)
	require.EqualValues(t, 12, total)
	for _, m := range members {
		require.Equal(t, models.MemberTypeBroker, m.MemberType)
	}

	members, total, err = f.svc.ListMembers(ctx, "investor", stores.Page{})
	require.NoError(t, err)
	require.Len(t, members, 3)
	require.EqualValues(t, 3, total)

	_, _, err = f.svc.ListMembers(ctx, "trader", stores.Page{})
	require.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestListMembersByFirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.brokerFirm(t, "Acme Capital")
	other := f.brokerFirm(t, "Northwind Funds")
	f.broker(t, acme.ID, "a@example.com", nil)
	f.broker(t, acme.ID, "b@example.com", nil)
	f.broker(t, other.ID, "c@example.com", nil)

	members, err := f.svc.ListMembersByFirm(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, err = f.svc.ListMembersByFirm(ctx, "missing")
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestFirmMembersMatchMemberFirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.brokerFirm(t, "Acme Capital")
	other := f.brokerFirm(t, "Northwind Funds")
	a := f.broker(t, acme.ID, "a@example.com", nil)
	b := f.broker(t, acme.ID, "b@example.com", nil)
	f.broker(t, other.ID, "c@example.com", nil)

	_, err := f.svc.Delete(ctx, a.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Move(ctx, b.ID, other.ID, "BrokerMember", models.MemberInput{})
	require.NoError(t, err)

	report, err := NewConsistencyService(f.db).Audit(ctx)
	require.NoError(t, err)
	require.True(t, report.Clean(), "issues: %+v", report.Issues)
	require.Equal(t, 2, report.Members)
	require.Equal(t, 2, report.Links)
}

func TestDeleteMember_RemovesStoredCard(t *testing.T) {
	f := newFixture(t)
	firm := f.brokerFirm(t, "Acme Capital")
	card := storedCard(t, "card.png")
	member := f.broker(t, firm.ID, "asha@example.com", card)

	_, err := f.svc.Delete(context.Background(), member.ID)
	require.NoError(t, err)
	requireGone(t, card.Path)
}

func TestUpdateMember_RemovesReplacedCardUpload(t *testing.T) {
	f := newFixture(t)
	firm := f.brokerFirm(t, "Acme Capital")
	oldCard := storedCard(t, "old.png")
	member := f.broker(t, firm.ID, "asha@example.com", oldCard)

	newCard := storedCard(t, "new.png")
	_, _, err := f.svc.Update(context.Background(), member.ID, "broker", models.MemberInput{}, newCard)
	require.NoError(t, err)

	requireGone(t, oldCard.Path)
	_, err = os.Stat(newCard.Path)
	require.NoError(t, err)
}

func TestUpdateMember_FailureAfterOldCardDeleted(t *testing.T) {
	injected := errors.New("connection reset")
	f := newFixture(t, withStepHook(func(_ context.Context, _ *stores.Stores, op, name string) error {
		if op == OpUpdateMember && name == StepPersistBusinessCard {
			return injected
		}
		return nil
	}))
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	oldCard := storedCard(t, "old.png")
	member := f.broker(t, firm.ID, "asha@example.com", oldCard)

	_, _, err := f.svc.Update(ctx, member.ID, "broker", models.MemberInput{
		Designation: strPtr("Partner"),
	}, storedCard(t, "new.png"))
	var cascadeErr *apperror.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	require.Equal(t, OpUpdateMember, cascadeErr.Operation)
	require.Equal(t, []string{StepDeleteOldBusinessCard}, cascadeErr.Completed)
	require.Equal(t, StepPersistBusinessCard, cascadeErr.Failed)
	require.True(t, errors.Is(err, injected))

	got, err := f.svc.Get(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, "Analyst", got.Designation)
	require.Equal(t, *member.BusinessCard, *got.BusinessCard, "member still references the deleted card")

	_, err = f.stores.Files.FindByID(ctx, *got.BusinessCard)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	requireGone(t, oldCard.Path)
}

func TestUpdateMember_RacingDeleteLeavesOrphanCard(t *testing.T) {
	var memberID string
	f := newFixture(t, withStepHook(func(ctx context.Context, s *stores.Stores, op, name string) error {
		if op == OpUpdateMember && name == StepSaveMember {
			// A concurrent delete removes the member after the card was stored.
			return s.Members.Delete(ctx, memberID)
		}
		return nil
	}))
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	memberID = f.broker(t, firm.ID, "asha@example.com", nil).ID

	_, _, err := f.svc.Update(ctx, memberID, "broker", models.MemberInput{}, &models.File{FileName: "card.png"})
	var cascadeErr *apperror.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	require.Equal(t, []string{StepPersistBusinessCard}, cascadeErr.Completed)
	require.Equal(t, StepSaveMember, cascadeErr.Failed)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.svc.Get(ctx, memberID)
	require.True(t, apperror.Is(err, apperror.KindNotFound), "save must not recreate the member")

	report, err := NewConsistencyService(f.db).Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(IssueOrphanFile))
}

func TestDeleteMember_FailureAfterUnlink(t *testing.T) {
	injected := errors.New("connection reset")
	failing := true
	f := newFixture(t, withStepHook(func(_ context.Context, _ *stores.Stores, op, name string) error {
		if failing && op == OpDeleteMember && name == StepDeleteInteractions {
			return injected
		}
		return nil
	}))
	ctx := context.Background()
	firm := f.brokerFirm(t, "Acme Capital")
	card := storedCard(t, "card.png")
	member := f.broker(t, firm.ID, "asha@example.com", card)
	f.interactions(t, member.ID, 2)

	_, err := f.svc.Delete(ctx, member.ID)
	var cascadeErr *apperror.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	require.Equal(t, []string{StepUnlinkFirm}, cascadeErr.Completed)
	require.Equal(t, StepDeleteInteractions, cascadeErr.Failed)

	got, err := f.svc.Get(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, got.Interactions, 2)
	require.Empty(t, f.memberIDs(t, firm.ID))
	_, err = os.Stat(card.Path)
	require.NoError(t, err, "card upload stays while its record exists")

	audit := NewConsistencyService(f.db)
	report, err := audit.Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(IssueMissingLink))

	failing = false
	_, err = f.svc.Delete(ctx, member.ID)
	require.NoError(t, err)
	requireGone(t, card.Path)

	report, err = audit.Audit(ctx)
	require.NoError(t, err)
	require.True(t, report.Clean())
}

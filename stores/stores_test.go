package stores_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"brokerdesk/apperror"
	"brokerdesk/models"
	"brokerdesk/stores"
	"brokerdesk/testutil"
)

func newStores(t *testing.T) *stores.Stores {
	t.Helper()
	return stores.New(testutil.NewDB(t))
}

func createFirm(t *testing.T, s *stores.Stores, name string) *models.Firm {
	t.Helper()
	firm := &models.Firm{
		FirmType:     models.FirmTypeBroker,
		Name:         name,
		LocationType: models.LocationDomestic,
		CreatedBy:    "user-1",
		IsActive:     true,
		Broker:       &models.BrokerFirm{Sectors: []string{"Banking"}},
	}
	require.NoError(t, s.Firms.Create(context.Background(), firm))
	return firm
}

func newBroker(firmID, email string) *models.Member {
	return &models.Member{
		MemberType:  models.MemberTypeBroker,
		Name:        "Asha Rao",
		Email:       email,
		Designation: "Analyst",
		FirmID:      firmID,
		FirmHistory: datatypes.JSONSlice[models.FirmHistoryEntry]{{Firm: firmID, DateOfJoining: time.Now()}},
		Broker:      &models.BrokerPerson{Sectors: []string{"Energy"}},
	}
}

func TestFirmStore_CreateRejectsDuplicateName(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	createFirm(t, s, "Acme Capital")

	dup := &models.Firm{
		FirmType:     models.FirmTypeBroker,
		Name:         "  Acme Capital ",
		LocationType: models.LocationForeign,
		CreatedBy:    "user-2",
		Broker:       &models.BrokerFirm{Sectors: []string{"IT"}},
	}
	err := s.Firms.Create(ctx, dup)
	require.True(t, apperror.Is(err, apperror.KindConflict), "got %v", err)
}

func TestFirmStore_InvestorRoundTrip(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	global, indian := 1200.5, 300.0
	firm := &models.Firm{
		FirmType:     models.FirmTypeInvestor,
		Name:         "Northwind Funds",
		LocationType: models.LocationForeign,
		CreatedBy:    "user-1",
		Address:      &models.Address{City: "Singapore", Country: "SG"},
		Investor: &models.InvestorFirm{
			Sectors:       []string{"Pharma"},
			RegionSectors: []string{"APAC Healthcare"},
			RegionFocus:   []string{"APAC"},
			FundSize:      models.FundSize{GlobalExposure: &global, IndianExposure: &indian},
		},
	}
	require.NoError(t, s.Firms.Create(ctx, firm))

	got, err := s.Firms.FindByID(ctx, firm.ID)
	require.NoError(t, err)
	require.Equal(t, models.FirmTypeInvestor, got.FirmType)
	require.Nil(t, got.Broker)
	require.NotNil(t, got.Investor)
	require.Equal(t, []string{"Pharma"}, got.Investor.Sectors)
	require.Equal(t, []string{"APAC"}, got.Investor.RegionFocus)
	require.InDelta(t, 300.0, *got.Investor.FundSize.IndianExposure, 0.001)
	require.InDelta(t, 1200.5, *got.Investor.FundSize.GlobalExposure, 0.001)
	require.Equal(t, "Singapore", got.Address.City)
	require.True(t, got.IsActive)
	require.Empty(t, got.Members)
}

func TestFirmStore_FindByIDMissing(t *testing.T) {
	s := newStores(t)
	_, err := s.Firms.FindByID(context.Background(), "missing")
	require.True(t, apperror.Is(err, apperror.KindNotFound))
	require.Equal(t, "Firm not found", err.Error())
}

func TestFirmStore_MemberLinksHaveSetSemantics(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")

	require.NoError(t, s.Firms.AddMemberLink(ctx, firm.ID, "m1"))
	require.NoError(t, s.Firms.AddMemberLink(ctx, firm.ID, "m1"))
	require.NoError(t, s.Firms.AddMemberLink(ctx, firm.ID, "m2"))

	ids, err := s.Firms.MemberIDs(ctx, firm.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"m1", "m2"}, ids)

	require.NoError(t, s.Firms.RemoveMemberLink(ctx, firm.ID, "m1"))
	require.NoError(t, s.Firms.RemoveMemberLink(ctx, firm.ID, "absent"))

	ids, err = s.Firms.MemberIDs(ctx, firm.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"m2"}, ids)
}

func TestFirmStore_FindAllFiltersAndCounts(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		createFirm(t, s, fmt.Sprintf("Broker House %d", i))
	}
	createFirm(t, s, "Other Desk")

	firms, total, err := s.Firms.FindAll(ctx, stores.FirmFilter{Search: "house"}, stores.Page{Page: 2, PerPage: 3})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, firms, 1)

	firms, total, err = s.Firms.FindAll(ctx, stores.FirmFilter{FirmType: models.FirmTypeInvestor}, stores.Page{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, firms)
}

func TestFirmStore_ReplaceMemberLinks(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	require.NoError(t, s.Firms.AddMemberLink(ctx, firm.ID, "stale"))

	require.NoError(t, s.Firms.ReplaceMemberLinks(ctx, []models.FirmMember{
		{FirmID: firm.ID, MemberID: "a"},
		{FirmID: firm.ID, MemberID: "b"},
	}))

	ids, err := s.Firms.MemberIDs(ctx, firm.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMemberStore_CreateRejectsDuplicateEmail(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")

	require.NoError(t, s.Members.Create(ctx, newBroker(firm.ID, "asha@example.com")))
	err := s.Members.Create(ctx, newBroker(firm.ID, "ASHA@example.com"))
	require.True(t, apperror.Is(err, apperror.KindConflict), "got %v", err)
}

func TestMemberStore_CreateReplacementIgnoresReplacedEmail(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	old := newBroker(firm.ID, "asha@example.com")
	require.NoError(t, s.Members.Create(ctx, old))

	require.NoError(t, s.Members.CreateReplacement(ctx, newBroker(firm.ID, "asha@example.com"), old.ID))
}

func TestMemberStore_FindByIDAndType(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	member := newBroker(firm.ID, "asha@example.com")
	require.NoError(t, s.Members.Create(ctx, member))

	got, err := s.Members.FindByIDAndType(ctx, member.ID, models.MemberTypeBroker)
	require.NoError(t, err)
	require.Equal(t, member.Email, got.Email)
	require.Equal(t, []string{"Energy"}, got.Broker.Sectors)
	require.Len(t, got.FirmHistory, 1)
	require.Empty(t, got.Interactions)

	_, err = s.Members.FindByIDAndType(ctx, member.ID, models.MemberTypeInvestor)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestMemberStore_SaveAndDeleteMissing(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	member := newBroker(firm.ID, "asha@example.com")
	require.NoError(t, s.Members.Create(ctx, member))

	member.Designation = "Partner"
	member.IsGift = true
	require.NoError(t, s.Members.Save(ctx, member))

	got, err := s.Members.FindByID(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, "Partner", got.Designation)
	require.True(t, got.IsGift)

	require.NoError(t, s.Members.Delete(ctx, member.ID))
	err = s.Members.Delete(ctx, member.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	err = s.Members.Save(ctx, member)
	require.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestMemberStore_ListByTypePaginates(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	linked := []string{}
	for i := 0; i < 12; i++ {
		member := newBroker(firm.ID, fmt.Sprintf("b%d@example.com", i))
		require.NoError(t, s.Members.Create(ctx, member))
		if i < 2 {
			require.NoError(t, s.Firms.AddMemberLink(ctx, firm.ID, member.ID))
			linked = append(linked, member.ID)
		}
	}

	members, total, err := s.Members.ListByType(ctx, models.MemberTypeBroker, stores.Page{Page: 2, PerPage: 5})
	require.NoError(t, err)
	require.EqualValues(t, 12, total)
	require.Len(t, members, 5)
	for _, m := range members {
		require.Equal(t, models.MemberTypeBroker, m.MemberType)
		require.NotNil(t, m.Firm)
		require.Equal(t, "Acme Capital", m.Firm.Name)
		require.ElementsMatch(t, linked, m.Firm.Members)
	}

	_, total, err = s.Members.ListByType(ctx, models.MemberTypeInvestor, stores.Page{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestMemberStore_ListByTypePageBeyondRange(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Members.Create(ctx, newBroker(firm.ID, fmt.Sprintf("b%d@example.com", i))))
	}

	page := stores.Page{Page: math.MaxInt, PerPage: 2}
	require.Equal(t, math.MaxInt, page.Offset())

	members, total, err := s.Members.ListByType(ctx, models.MemberTypeBroker, page)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Empty(t, members)
}

func TestInteractionStore_RepointAndDelete(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Interactions.Create(ctx, &models.Interaction{
			MemberID:   "old",
			Subject:    fmt.Sprintf("Call %d", i),
			OccurredAt: time.Now(),
		}))
	}

	moved, err := s.Interactions.RepointMember(ctx, "old", "new")
	require.NoError(t, err)
	require.EqualValues(t, 3, moved)

	byMember, err := s.Interactions.IDsByMembers(ctx, []string{"old", "new"})
	require.NoError(t, err)
	require.Empty(t, byMember["old"])
	require.Len(t, byMember["new"], 3)

	deleted, err := s.Interactions.DeleteByMember(ctx, "new")
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
}

func TestInteractionStore_CreateValidates(t *testing.T) {
	s := newStores(t)
	err := s.Interactions.Create(context.Background(), &models.Interaction{MemberID: "m1"})
	require.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestFileStore_LifeCycle(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	owner := "m1"
	file := &models.File{FirmID: "f1", MemberID: &owner, FileName: "card.png"}
	require.NoError(t, s.Files.Save(ctx, file))
	require.NotEmpty(t, file.ID)

	found, err := s.Files.RepointMember(ctx, file.ID, "m2")
	require.NoError(t, err)
	require.True(t, found)

	got, err := s.Files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	require.Equal(t, "m2", *got.MemberID)

	require.NoError(t, s.Files.Delete(ctx, file.ID))
	err = s.Files.Delete(ctx, file.ID)
	require.True(t, apperror.Is(err, apperror.KindNotFound))

	found, err = s.Files.RepointMember(ctx, file.ID, "m3")
	require.NoError(t, err)
	require.False(t, found)
}

func TestOrphansDetectMissingMembers(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	firm := createFirm(t, s, "Acme Capital")
	member := newBroker(firm.ID, "asha@example.com")
	require.NoError(t, s.Members.Create(ctx, member))

	require.NoError(t, s.Interactions.Create(ctx, &models.Interaction{MemberID: member.ID, Subject: "Intro"}))
	require.NoError(t, s.Interactions.Create(ctx, &models.Interaction{MemberID: "ghost", Subject: "Lost"}))
	ghost := "ghost"
	require.NoError(t, s.Files.Save(ctx, &models.File{FirmID: firm.ID, MemberID: &ghost}))

	orphans, err := s.Interactions.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, "ghost", orphans[0].MemberID)

	files, err := s.Files.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

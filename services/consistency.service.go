package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerdesk/logger"
	"brokerdesk/metrics"
	"brokerdesk/models"
	"brokerdesk/stores"
)

// Issue kinds reported by the audit.
const (
	IssueMissingLink       = "missing_link"
	IssueDanglingLink      = "dangling_link"
	IssueMissingFirm       = "missing_firm"
	IssueHistoryMismatch   = "history_mismatch"
	IssueOrphanInteraction = "orphan_interaction"
	IssueOrphanFile        = "orphan_file"
)

var issueKinds = []string{
	IssueMissingLink,
	IssueDanglingLink,
	IssueMissingFirm,
	IssueHistoryMismatch,
	IssueOrphanInteraction,
	IssueOrphanFile,
}

// Issue is one broken reference between members, firms, interactions and
// files.
type Issue struct {
	Kind     string `json:"kind"`
	FirmID   string `json:"firmId,omitempty"`
	MemberID string `json:"memberId,omitempty"`
	RecordID string `json:"recordId,omitempty"`
}

type ConsistencyReport struct {
	CheckedAt time.Time `json:"checkedAt"`
	Members   int       `json:"members"`
	Links     int       `json:"links"`
	Issues    []Issue   `json:"issues"`
}

// Clean reports whether the audit found nothing.
func (r *ConsistencyReport) Clean() bool {
	return len(r.Issues) == 0
}

// Count returns the number of issues of kind.
func (r *ConsistencyReport) Count(kind string) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}

// ConsistencyService finds and repairs drift left behind by partially
// applied cascades. Member.firm and Interaction.member are treated as the
// source of truth.
type ConsistencyService struct {
	stores *stores.Stores
	now    func() time.Time
}

func NewConsistencyService(db *gorm.DB) *ConsistencyService {
	return &ConsistencyService{stores: stores.New(db), now: time.Now}
}

func (s *ConsistencyService) Audit(ctx context.Context) (*ConsistencyReport, error) {
	members, err := s.stores.Members.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	links, err := s.stores.Firms.Links(ctx)
	if err != nil {
		return nil, err
	}
	firmIDs, err := s.stores.Firms.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	firms := make(map[string]bool, len(firmIDs))
	for _, id := range firmIDs {
		firms[id] = true
	}
	type pair struct{ firm, member string }
	linked := make(map[pair]bool, len(links))
	for _, link := range links {
		linked[pair{link.FirmID, link.MemberID}] = true
	}
	current := make(map[pair]bool, len(members))

	report := &ConsistencyReport{
		CheckedAt: s.now(),
		Members:   len(members),
		Links:     len(links),
		Issues:    []Issue{},
	}
	for _, m := range members {
		key := pair{m.FirmID, m.ID}
		current[key] = true
		if !firms[m.FirmID] {
			report.Issues = append(report.Issues, Issue{Kind: IssueMissingFirm, FirmID: m.FirmID, MemberID: m.ID})
		} else if !linked[key] {
			report.Issues = append(report.Issues, Issue{Kind: IssueMissingLink, FirmID: m.FirmID, MemberID: m.ID})
		}
		if n := len(m.FirmHistory); n == 0 || m.FirmHistory[n-1].Firm != m.FirmID {
			report.Issues = append(report.Issues, Issue{Kind: IssueHistoryMismatch, FirmID: m.FirmID, MemberID: m.ID})
		}
	}
	for _, link := range links {
		if !current[pair{link.FirmID, link.MemberID}] {
			report.Issues = append(report.Issues, Issue{Kind: IssueDanglingLink, FirmID: link.FirmID, MemberID: link.MemberID})
		}
	}

	interactions, err := s.stores.Interactions.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range interactions {
		report.Issues = append(report.Issues, Issue{Kind: IssueOrphanInteraction, MemberID: i.MemberID, RecordID: i.ID})
	}
	files, err := s.stores.Files.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		issue := Issue{Kind: IssueOrphanFile, FirmID: f.FirmID, RecordID: f.ID}
		if f.MemberID != nil {
			issue.MemberID = *f.MemberID
		}
		report.Issues = append(report.Issues, issue)
	}

	for _, kind := range issueKinds {
		metrics.ConsistencyIssues.WithLabelValues(kind).Set(float64(report.Count(kind)))
	}
	return report, nil
}

// Repair rebuilds every firm's member set from the members' current firm
// and returns the audit taken afterwards. Orphaned interactions and files
// are reported, not removed.
func (s *ConsistencyService) Repair(ctx context.Context) (*ConsistencyReport, error) {
	members, err := s.stores.Members.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	firmIDs, err := s.stores.Firms.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	firms := make(map[string]bool, len(firmIDs))
	for _, id := range firmIDs {
		firms[id] = true
	}

	links := make([]models.FirmMember, 0, len(members))
	for _, m := range members {
		if firms[m.FirmID] {
			links = append(links, models.FirmMember{FirmID: m.FirmID, MemberID: m.ID})
		}
	}
	if err := s.stores.Firms.ReplaceMemberLinks(ctx, links); err != nil {
		return nil, err
	}

	report, err := s.Audit(ctx)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Firm member sets rebuilt",
		zap.Int("links", len(links)),
		zap.Int("remaining_issues", len(report.Issues)),
	)
	return report, nil
}

// ScheduledRepair runs Repair for the cron scheduler and warns when drift
// remains that a link rebuild cannot fix.
func (s *ConsistencyService) ScheduledRepair(ctx context.Context) error {
	report, err := s.Repair(ctx)
	if err != nil {
		return err
	}
	if !report.Clean() {
		logger.FromContext(ctx).Warn("Repair left issues that need attention", zap.Int("issues", len(report.Issues)))
	}
	return nil
}

// Package stores holds the per-collection entity stores. Every write is a
// single committed statement; callers that need several writes to hold
// together use services, which order them and report partial failures.
package stores

import (
	"math"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"brokerdesk/apperror"
)

// Page is an optional pagination window. The zero value means no window.
type Page struct {
	Page    int
	PerPage int
}

// Enabled reports whether both page and perPage were supplied.
func (p Page) Enabled() bool {
	return p.Page > 0 && p.PerPage > 0
}

// Offset returns the number of rows before the window. A window beyond the
// representable range saturates, so it selects nothing.
func (p Page) Offset() int {
	if !p.Enabled() {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

func paginate(p Page) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !p.Enabled() {
			return db
		}
		return db.Offset(p.Offset()).Limit(p.PerPage)
	}
}

// Stores bundles the stores sharing one database handle.
type Stores struct {
	Firms        *FirmStore
	Members      *MemberStore
	Interactions *InteractionStore
	Files        *FileStore
}

func New(db *gorm.DB) *Stores {
	return &Stores{
		Firms:        NewFirmStore(db),
		Members:      NewMemberStore(db),
		Interactions: NewInteractionStore(db),
		Files:        NewFileStore(db),
	}
}

// notFoundOr maps gorm's missing-record error to a NotFound with message and
// wraps anything else.
func notFoundOr(err error, message, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(message)
	}
	return errors.Wrap(err, op)
}

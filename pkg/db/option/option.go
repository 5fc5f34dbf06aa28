package option

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Option interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies keyset pagination on (created_at, id). The
// extra row beyond the page size lets the caller detect has-more.
func ApplyPagination(page pagination.Pagination) Option {
	return optionFunc(func(stmt *gorm.DB) *gorm.DB {
		pageSize := page.PageSize
		if pageSize <= 0 {
			pageSize = 10
		}
		if pageSize > 250 {
			pageSize = 250
		}

		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil {
				createdAt, timeErr := time.Parse(time.RFC3339, cursor.CreatedAt)
				id, idErr := snowflake.ParseString(cursor.ID)
				if timeErr == nil && idErr == nil {
					stmt = stmt.Where(
						"created_at < ? OR (created_at = ? AND id < ?)",
						createdAt, createdAt, id,
					)
				}
			}
		}

		return stmt.Limit(pageSize + 1)
	})
}

package cache

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GORMBackend adapts a *gorm.DB session to the Backend interface. GORM
// handles placeholder binding for every dialect it opens, so queries pass
// through unmodified.
type GORMBackend struct {
	db      *gorm.DB
	dialect Dialect
}

// NewGORMBackend wraps an already-open GORM handle. The dialect is derived
// from the session's dialector.
func NewGORMBackend(db *gorm.DB) (*GORMBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("cache: nil gorm handle")
	}

	dialect, err := ParseDialect(db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	return &GORMBackend{db: db, dialect: dialect}, nil
}

func (b *GORMBackend) Exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return classify("exec", b.db.WithContext(ctx).Exec(query, args...).Error)
}

func (b *GORMBackend) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dest := map[string]any{}
	tx := b.db.WithContext(ctx).Raw(query, args...).Scan(&dest)
	if tx.Error != nil {
		return nil, classify("query", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}

	return rowMap(dest), nil
}

func (b *GORMBackend) Dialect() Dialect {
	return b.dialect
}

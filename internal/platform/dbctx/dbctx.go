package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context and, when inside a transaction, its handle.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Ensure fills a nil Ctx with context.Background.
func (c Context) Ensure() Context {
	if c.Ctx == nil {
		c.Ctx = context.Background()
	}
	return c
}

package domain

import (
	"context"
	"time"
)

type Tenant struct {
	ID          string
	Name        string
	BackendPort int
	MaxDomains  int
	CreatedAt   time.Time
}

// TenantRegistry is the narrow slice of the tenant subsystem this core
// consumes. Tenant CRUD lives elsewhere.
type TenantRegistry interface {
	FindByID(ctx context.Context, id string) (*Tenant, error)
	ListIDs(ctx context.Context) ([]string, error)
}

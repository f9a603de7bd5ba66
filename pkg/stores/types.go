package stores

import (
	"context"
	"strconv"
)

// ProjectID is the store-assigned identifier of a project.
type ProjectID int64

// String returns the decimal form of the id.
func (id ProjectID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseProjectID parses a decimal project id.
func ParseProjectID(s string) (ProjectID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ProjectID(n), nil
}

// Project represents a showcased project
type Project struct {
	ID            ProjectID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ImageFileName string    `json:"image_filename"`
}

// NewProject holds the caller-supplied fields of a project to insert.
// Empty Description or ImageFileName values are stored as NULL.
type NewProject struct {
	Title         string `json:"title" form:"title"`
	Description   string `json:"description" form:"description"`
	ImageFileName string `json:"image_filename" form:"image_filename"`
}

// DeleteResult reports what a delete actually did.
type DeleteResult int

const (
	// DeleteResultNotFound means no record had the id. It is not an error.
	DeleteResultNotFound DeleteResult = iota
	// DeleteResultDeleted means exactly one record was removed.
	DeleteResultDeleted
)

// String returns a short label for logs and metrics.
func (r DeleteResult) String() string {
	if r == DeleteResultDeleted {
		return "deleted"
	}
	return "not_found"
}

// Store defines the interface for the project persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	Close() error

	// Project operations
	AddProject(ctx context.Context, p NewProject) (ProjectID, error)
	ListAllProjects(ctx context.Context) ([]Project, error)
	DeleteProject(ctx context.Context, id ProjectID) (DeleteResult, error)

	// Utility
	HealthCheck(ctx context.Context) error
	Backup(ctx context.Context, dest string) error
}

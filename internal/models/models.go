// package models defines the data model for the music library
package models

import (
	"context"
	"time"
)

// Model defines the base interface for all persistent models in the library.
type Model interface {
	ID() string           // ID returns the external identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its external ID
	Update(ctx context.Context, model T) error                      // Update modifies an existing model
	Delete(ctx context.Context, id string) error                    // Delete removes a model by its external ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"agentgate/internal/config"
	"agentgate/internal/models"
)

// ErrNotFound indicates the requested model is not published.
var ErrNotFound = errors.New("model not found")

// ErrDuplicateModel indicates an attempt to publish the same model twice.
var ErrDuplicateModel = errors.New("model already registered")

// Catalog is the read-only set of published model identifiers. It is built
// once and never mutated, so concurrent reads need no locking.
type Catalog struct {
	ordered []models.ModelInfo
	byID    map[string]int
}

// New builds a catalog from configured models, stamping each with created.
func New(entries []config.ModelConfig, created time.Time) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]models.ModelInfo, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}

	for _, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" {
			return nil, errors.New("model id must not be empty")
		}
		if _, exists := c.byID[entry.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, entry.ID)
		}

		c.byID[entry.ID] = len(c.ordered)
		c.ordered = append(c.ordered, models.ModelInfo{
			ID:      entry.ID,
			Created: created.Unix(),
			OwnedBy: entry.OwnedBy,
		})
	}

	return c, nil
}

// List returns the models in declaration order.
func (c *Catalog) List() []models.ModelInfo {
	result := make([]models.ModelInfo, len(c.ordered))
	copy(result, c.ordered)
	return result
}

// Get returns the model with exactly the given id.
func (c *Catalog) Get(id string) (models.ModelInfo, error) {
	idx, ok := c.byID[id]
	if !ok {
		return models.ModelInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.ordered[idx], nil
}

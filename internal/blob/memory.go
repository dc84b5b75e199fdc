package blob

import (
	memorystore "admissions/internal/infra/blob/memory"
)

// NewMemory returns a Store held in process memory.
func NewMemory() Store { return memorystore.New() }

package blob

import (
	"admissions/internal/infra/blob/fs"
)

// NewFilesystem constructs a directory-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

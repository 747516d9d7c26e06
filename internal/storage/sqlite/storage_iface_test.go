package sqlite

import "github.com/hourbook/hourbook/internal/storage"

var _ storage.Storage = (*SQLiteStorage)(nil)

package migrator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/staminads/staminads/internal/settings"
)

// VersionStore persists the installed schema major version as a settings
// row. Absence means a fresh install, not version zero.
type VersionStore struct {
	Settings *settings.Store
}

func (s *VersionStore) Installed(ctx context.Context) (int, bool, error) {
	rec, ok, err := s.Settings.Get(ctx, settings.VersionKey)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.Atoi(rec.Value)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt %s value %q: %w", settings.VersionKey, rec.Value, err)
	}
	return v, true, nil
}

func (s *VersionStore) Record(ctx context.Context, version int) error {
	return s.Settings.Put(ctx, settings.VersionKey, strconv.Itoa(version))
}

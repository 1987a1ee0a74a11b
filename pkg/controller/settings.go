package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// LoadSettings applies the stored settings, migrating them to the current
// version first. Without stored settings the flag settings stay in effect.
func (c *Coordinator) LoadSettings(ctx context.Context) error {
	settings, version, err := c.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if version == 0 && settings == (types.Settings{}) {
		log.Ctx(ctx).DebugContext(ctx, "no stored settings")
		return nil
	}

	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		migrated, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// best effort, the stored settings may still be usable
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			settings = migrated
			if err := c.storage.SetSettings(ctx, settings, types.CurrentSettingsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
			}
		}
	}
	return c.ApplySettings(ctx, settings)
}

// UpdateSettings applies and stores new settings.
func (c *Coordinator) UpdateSettings(ctx context.Context, settings types.Settings) (types.Settings, error) {
	if err := c.ApplySettings(ctx, settings); err != nil {
		return types.Settings{}, err
	}
	applied := c.Settings()
	if err := c.storage.SetSettings(ctx, applied, types.CurrentSettingsVersion); err != nil {
		return types.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return applied, nil
}

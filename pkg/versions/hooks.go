package versions

import "context"

// CreateHook is called after a version has been stored.
type CreateHook interface {
	VersionCreated(ctx context.Context, table string, recordID int64, version int, row map[string]any) error
}

// CreateHookFunc adapts a function to CreateHook.
type CreateHookFunc func(ctx context.Context, table string, recordID int64, version int, row map[string]any) error

// VersionCreated implements CreateHook.
func (f CreateHookFunc) VersionCreated(ctx context.Context, table string, recordID int64, version int, row map[string]any) error {
	return f(ctx, table, recordID, version, row)
}

// RestoreHook is called after a version has been written back to its row.
type RestoreHook interface {
	VersionRestored(ctx context.Context, table string, recordID int64, version int, data map[string]any) error
}

// RestoreHookFunc adapts a function to RestoreHook.
type RestoreHookFunc func(ctx context.Context, table string, recordID int64, version int, data map[string]any) error

// VersionRestored implements RestoreHook.
func (f RestoreHookFunc) VersionRestored(ctx context.Context, table string, recordID int64, version int, data map[string]any) error {
	return f(ctx, table, recordID, version, data)
}

// LegacyRestoreHook is the restore callback with the record ID first and the
// version last.
//
// Deprecated: use RestoreHook. Registered legacy hooks still run after the
// current ones, and every restore that runs them logs a warning.
type LegacyRestoreHook interface {
	Restored(ctx context.Context, recordID int64, table string, data map[string]any, version int) error
}

// LegacyRestoreHookFunc adapts a function to LegacyRestoreHook.
//
// Deprecated: use RestoreHookFunc.
type LegacyRestoreHookFunc func(ctx context.Context, recordID int64, table string, data map[string]any, version int) error

// Restored implements LegacyRestoreHook.
func (f LegacyRestoreHookFunc) Restored(ctx context.Context, recordID int64, table string, data map[string]any, version int) error {
	return f(ctx, recordID, table, data, version)
}

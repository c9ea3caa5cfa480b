// Package config loads the manivault configuration.
//
// Settings are layered, each layer overriding the one before it:
//
//  1. Built-in defaults (Default)
//  2. The TOML configuration file (~/.manivault/config.toml by default)
//  3. A dotenv file (.env next to the configuration file)
//  4. MANIVAULT_* environment variables
//
// Environment variables name a setting by section and key, upper-cased and
// joined with underscores: MANIVAULT_LOGGING_LEVEL sets logging.level and
// MANIVAULT_DATA_REMOVAL_POLICY sets data.removal_policy.
//
// A Store keeps the current configuration. Watch reloads it when the file
// or the dotenv file changes and tells OnChange observers about the old and
// new values:
//
//	store, err := config.Load(config.WithPath(path))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	store.OnChange(func(old, new *config.Config) {
//		logger.Info("log level", zap.String("level", new.Logging.Level))
//	})
//	_ = store.Watch()
package config

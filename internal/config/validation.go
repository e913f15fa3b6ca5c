package config

import (
	"strings"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MarkupExtension == "" || c.MarkupExtension == ".":
		return invalid("markup_extension", c.MarkupExtension, "must be a file extension")
	case len(c.Targets) == 0:
		return invalid("targets", c.Targets, "at least one default target is required")
	case c.CacheDir == "":
		return invalid("cache_dir", c.CacheDir, "must not be empty")
	case c.Timeout < 0:
		return invalid("timeout", c.Timeout.String(), "must not be negative")
	case c.MaxJobs < 0:
		return invalid("max_jobs", c.MaxJobs, "must not be negative")
	case c.PollInterval <= 0:
		return invalid("poll_interval", c.PollInterval.String(), "must be positive")
	case c.HashLength < 4 || c.HashLength > 16:
		return invalid("hash_length", c.HashLength, "must be between 4 and 16")
	}
	if c.Decider.Store != DeciderMemory && c.Decider.Store != DeciderSQLite {
		return invalid("decider.store", c.Decider.Store,
			"must be one of "+strings.Join(deciderStoreNormalizer.ValidKeys(), ", "))
	}
	for _, t := range c.Targets {
		if t == "" || t == "." {
			return invalid("targets", c.Targets, "entries must be file extensions")
		}
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	return derrors.ValidationError("invalid configuration: "+field+" "+reason).
		WithContext("field", field).
		WithContext("value", value).
		Build()
}

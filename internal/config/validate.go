// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints via validator tags plus the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q rule", first.Namespace(), first.Tag())
		}
		return err
	}

	if !filepath.IsAbs(c.Media.Root) {
		return fmt.Errorf("media.root must be an absolute path, got %q", c.Media.Root)
	}

	if c.Upstream.ReconnectBaseDelaySec > c.Upstream.ReconnectMaxDelaySec {
		return fmt.Errorf("upstream.reconnect_base_delay_sec (%d) exceeds reconnect_max_delay_sec (%d)",
			c.Upstream.ReconnectBaseDelaySec, c.Upstream.ReconnectMaxDelaySec)
	}

	if c.TTS.EngineTimeout <= 0 {
		return fmt.Errorf("tts.engine_timeout must be positive, got %s", c.TTS.EngineTimeout)
	}
	if c.TTS.HeavyEngineTimeout < c.TTS.EngineTimeout {
		return fmt.Errorf("tts.heavy_engine_timeout (%s) must not be below tts.engine_timeout (%s)",
			c.TTS.HeavyEngineTimeout, c.TTS.EngineTimeout)
	}

	if c.Pipeline.ExecCountFlushInterval <= 0 {
		return fmt.Errorf("pipeline.exec_count_flush_interval must be positive, got %s",
			c.Pipeline.ExecCountFlushInterval)
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/bluefxvideo/voiceline-server/internal/config"
	"github.com/bluefxvideo/voiceline-server/internal/logger"
	"github.com/bluefxvideo/voiceline-server/internal/ratelimit"
	"github.com/bluefxvideo/voiceline-server/internal/speech"
)

// ProvideSpeechClient provides the voice pipeline client used for narration
// synthesis and speech recognition during regeneration.
func ProvideSpeechClient(i do.Injector) (*speech.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := speech.NewClient(cfg.Speech.BaseURL, cfg.Speech.APIKey, log.Logger)

	log.Info("Voice pipeline client configured", "base_url", cfg.Speech.BaseURL)

	return client, nil
}

// RegenerateLimiterHandle wraps the per-timeline regeneration limiter with
// shutdown capability.
type RegenerateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RegenerateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRegenerateLimiter provides the per-timeline rate limiter guarding
// the regeneration endpoint.
func ProvideRegenerateLimiter(i do.Injector) (*RegenerateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return &RegenerateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Speech.RegenerateRPS, cfg.Speech.RegenerateBurst),
	}, nil
}

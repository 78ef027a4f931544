package providers

import (
	"github.com/samber/do/v2"

	"github.com/bluefxvideo/voiceline-server/internal/align"
	"github.com/bluefxvideo/voiceline-server/internal/config"
	"github.com/bluefxvideo/voiceline-server/internal/logger"
	"github.com/bluefxvideo/voiceline-server/internal/service"
	"github.com/bluefxvideo/voiceline-server/internal/speech"
	"github.com/bluefxvideo/voiceline-server/internal/syncstate"
)

// ProvideTrackerRegistry provides the per-timeline sync state registry.
func ProvideTrackerRegistry(i do.Injector) (*syncstate.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return syncstate.NewRegistry(log.Logger), nil
}

// ProvideTimelineService provides the timeline orchestration service.
func ProvideTimelineService(i do.Injector) (*service.TimelineService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	trackers := do.MustInvoke[*syncstate.Registry](i)
	voice := do.MustInvoke[*speech.Client](i)
	limiter := do.MustInvoke[*RegenerateLimiterHandle](i)

	maxWords, maxChars, minDur, maxDur := cfg.ChunkDefaults()
	pipeline := align.PipelineOptions{
		GapExtendThreshold: cfg.Align.GapExtendThreshold,
		Chunk: align.ChunkOptions{
			MaxWordsPerChunk: maxWords,
			MaxCharsPerLine:  maxChars,
			MinChunkDuration: minDur,
			MaxChunkDuration: maxDur,
		},
	}

	return service.NewTimelineService(
		storeHandle.Store,
		trackers,
		voice,
		voice,
		sseHandle.Manager,
		limiter.KeyedRateLimiter,
		pipeline,
		log.Logger,
	), nil
}

package platforms

import (
	"net/http"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
)

// NewPublishers builds one adapter per platform. apiBase overrides the default API roots.
func NewPublishers(apiBase map[model.Platform]string, hc *http.Client) map[model.Platform]repository.IPlatformPublisher {
	return map[model.Platform]repository.IPlatformPublisher{
		model.PlatformTwitter:   NewTwitter(apiBase[model.PlatformTwitter], hc),
		model.PlatformLinkedIn:  NewLinkedIn(apiBase[model.PlatformLinkedIn], hc),
		model.PlatformThreads:   NewThreads(apiBase[model.PlatformThreads], hc),
		model.PlatformInstagram: NewInstagram(apiBase[model.PlatformInstagram], hc),
	}
}

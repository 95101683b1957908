package configuration

import (
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// ResolveProviders applies the configured endpoint overrides to the static provider table.
// apiBase holds the publish API roots that were overridden; absent platforms use their defaults.
func (c Config) ResolveProviders() (specs map[model.Platform]model.ProviderSpec, apiBase map[model.Platform]string) {
	specs = model.DefaultProviders()
	apiBase = map[model.Platform]string{}
	for name, o := range c.Providers {
		p, err := model.ParsePlatform(name)
		if err != nil {
			logger.GetLogger().WithField("provider", name).Warn("Ignoring override for unknown provider")
			continue
		}
		spec := specs[p]
		override(&spec.AuthURL, o.AuthURL)
		override(&spec.TokenURL, o.TokenURL)
		override(&spec.RequestTokenURL, o.RequestTokenURL)
		override(&spec.AuthorizeURL1a, o.AuthorizeURL)
		override(&spec.AccessTokenURL, o.AccessTokenURL)
		override(&spec.ProfileURL, o.ProfileURL)
		specs[p] = spec
		if o.APIBaseURL != "" {
			apiBase[p] = o.APIBaseURL
		}
	}
	return specs, apiBase
}

// ProfileURLs maps each platform to its "me" endpoint.
func ProfileURLs(specs map[model.Platform]model.ProviderSpec) map[model.Platform]string {
	urls := make(map[model.Platform]string, len(specs))
	for p, s := range specs {
		urls[p] = s.ProfileURL
	}
	return urls
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

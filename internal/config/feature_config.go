package config

const (
	guildsScopeEnabledVar = "SNOWGATE_GUILDS_SCOPE_ENABLED"
	webFingerEnabledVar   = "SNOWGATE_WEBFINGER_ENABLED"
	rootRedirectURLVar    = "SNOWGATE_ROOT_REDIRECT_URL"
)

type Features struct{}

var _ FeatureConfig = Features{}

// GetGuildsScopeEnabled reports whether the groups scope maps guild
// membership into a groups claim. Costs an extra upstream call per issuance.
func (Features) GetGuildsScopeEnabled() bool {
	return GetEnv(guildsScopeEnabledVar, "true") == "true"
}

func (Features) GetWebFingerEnabled() bool {
	return GetEnv(webFingerEnabledVar, "false") == "true"
}

// GetRootRedirectURL is where GET / sends visitors. Empty means 404.
func (Features) GetRootRedirectURL() string {
	return GetEnv(rootRedirectURLVar, "")
}

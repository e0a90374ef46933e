/*
Package config loads client settings for tools and hosts embedding the NVM3
client.

Values come, in increasing order of precedence, from built-in defaults, an
optional YAML file and NVM3_* environment variables. Nested keys use an
underscore in the environment, so log.level is read from NVM3_LOG_LEVEL.

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	h, err := nvm3.Init()
	...
	err = nvm3.Open(h, cfg.Instance, cfg.Tracing)
*/
package config

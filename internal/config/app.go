package config

type AppConfig struct {
	Server  ServerConfig
	Log     LogConfig
	Match   MatchConfig
	Session SessionConfig
	Pool    PoolConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	matchCfg, err := LoadMatch()
	if err != nil {
		return AppConfig{}, err
	}
	sessionCfg, err := LoadSession()
	if err != nil {
		return AppConfig{}, err
	}
	poolCfg, err := LoadPool()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:  serverCfg,
		Log:     logCfg,
		Match:   matchCfg,
		Session: sessionCfg,
		Pool:    poolCfg,
	}, nil
}

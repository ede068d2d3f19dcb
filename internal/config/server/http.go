package server

// HTTPServerConfig configures the agent's admin API.
type HTTPServerConfig struct {
	Address        string   `mapstructure:"address"         yaml:"address"`
	RequestTimeout string   `mapstructure:"request_timeout" yaml:"request_timeout"`
	JWTSecret      string   `mapstructure:"jwt_secret"      yaml:"jwt_secret"`
	NonceTTL       string   `mapstructure:"nonce_ttl"       yaml:"nonce_ttl"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// UploadsServerConfig describes where the host platform keeps uploaded files.
type UploadsServerConfig struct {
	Root    string `mapstructure:"root"     yaml:"root"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

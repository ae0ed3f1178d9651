package model

// AuthType enumerates the discriminators recognized for community and
// enterprise auth configuration.
type AuthType string

const (
	AuthAnonymous   AuthType = "anonymous"
	AuthBasic       AuthType = "basic"
	AuthPSK         AuthType = "pre_shared_key"
	AuthPassword    AuthType = "password"
	AuthPrivateKey  AuthType = "private_key"
)

// SessionLanguage is the scripting language a community session speaks.
type SessionLanguage string

const (
	LangPython SessionLanguage = "python"
	LangGroovy SessionLanguage = "groovy"
)

// CommunitySessionConfig is one entry of community.sessions.<key>.
type CommunitySessionConfig struct {
	Host            string          `json:"host,omitempty" validate:"omitempty,hostname_port|hostname|ip"`
	Port            int             `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	AuthType        AuthType        `json:"auth_type"`
	AuthToken       string          `json:"auth_token,omitempty"`
	AuthTokenEnvVar string          `json:"auth_token_env_var,omitempty"`
	SessionType     SessionLanguage `json:"session_type" validate:"required,oneof=python groovy"`
	NeverTimeout    bool            `json:"never_timeout,omitempty"`
	UseTLS          bool            `json:"use_tls,omitempty"`
	TLSRootCerts    string          `json:"tls_root_certs,omitempty" validate:"omitempty,absolute_path"`
	ClientCertChain string          `json:"client_cert_chain,omitempty" validate:"omitempty,absolute_path"`
	ClientPrivateKey string         `json:"client_private_key,omitempty" validate:"omitempty,absolute_path"`
}

// SessionCreationDefaults is session_creation.defaults, the recognized
// enterprise PQ default fields from spec.md §4.1.
type SessionCreationDefaults struct {
	HeapSizeGB          *float64          `json:"heap_size_gb,omitempty"`
	ProgrammingLanguage SessionLanguage   `json:"programming_language,omitempty" validate:"omitempty,oneof=python groovy"`
	AutoDeleteTimeout   *int              `json:"auto_delete_timeout,omitempty"`
	Server              string           `json:"server,omitempty"`
	Engine               string           `json:"engine,omitempty"`
	ExtraJVMArgs         []string         `json:"extra_jvm_args,omitempty"`
	ExtraEnvironmentVars []string         `json:"extra_environment_vars,omitempty" validate:"dive,env_kv"`
	AdminGroups          []string         `json:"admin_groups,omitempty"`
	ViewerGroups         []string         `json:"viewer_groups,omitempty"`
	TimeoutSeconds       *float64         `json:"timeout_seconds,omitempty"`
	SessionArguments     map[string]any   `json:"session_arguments,omitempty"`
}

// SessionCreation is the optional session_creation subsection of an
// enterprise system config.
type SessionCreation struct {
	MaxConcurrentSessions int                     `json:"max_concurrent_sessions,omitempty" validate:"min=0"`
	Defaults              SessionCreationDefaults `json:"defaults,omitempty"`
}

// EnterpriseSystemConfig is one entry of enterprise.systems.<key>.
type EnterpriseSystemConfig struct {
	ConnectionJSONURL string           `json:"connection_json_url" validate:"required,url"`
	AuthType          AuthType         `json:"auth_type" validate:"required,oneof=password private_key"`
	Username          string           `json:"username,omitempty"`
	Password          string           `json:"password,omitempty"`
	PasswordEnvVar    string           `json:"password_env_var,omitempty"`
	PrivateKeyPath    string           `json:"private_key_path,omitempty" validate:"omitempty,absolute_path"`
	SessionCreation   *SessionCreation `json:"session_creation,omitempty"`
}

// CommunityConfig is the "community" top-level config branch.
type CommunityConfig struct {
	Sessions map[string]CommunitySessionConfig `json:"sessions,omitempty"`
}

// EnterpriseConfig is the "enterprise" top-level config branch.
type EnterpriseConfig struct {
	Systems map[string]EnterpriseSystemConfig `json:"systems,omitempty"`
}

// RawDocument is the root of the configuration document (spec.md §6).
type RawDocument struct {
	Community  *CommunityConfig  `json:"community,omitempty"`
	Enterprise *EnterpriseConfig `json:"enterprise,omitempty"`
}

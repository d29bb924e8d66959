package session

import (
	"time"

	"github.com/imdario/mergo"

	"github.com/xlnconf/netconf/netconf/resolver"
)

// Config carries the connection parameters of §3: host/port/user/password,
// the read-only/allow-multiple-edit/ignore-attributes flags, declared
// namespaces, and the fixed timeouts of §5. Grounded directly on the
// teacher's client.Config + DefaultConfig/mergo.Merge idiom
// (netconf/client/config.go + rpcsessionfactory.go).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	ReadOnly          bool
	AllowMultipleEdit bool
	IgnoreAttributes  bool

	Namespace *resolver.NamespaceConfig

	HandshakeTimeout  time.Duration
	FirstReplyTimeout time.Duration
	CloseTimeout      time.Duration
}

// DefaultConfig supplies the fixed 20s timeouts of §5 and the conventional
// NETCONF-over-SSH port.
var DefaultConfig = &Config{
	Port:              830,
	HandshakeTimeout:  20 * time.Second,
	FirstReplyTimeout: 20 * time.Second,
	CloseTimeout:      20 * time.Second,
}

// withDefaults returns a copy of c with every zero-valued field filled in
// from DefaultConfig, following the teacher's
// mergo.Merge(&resolvedConfig, DefaultConfig) idiom.
func (c *Config) withDefaults() *Config {
	if c == nil {
		cp := *DefaultConfig
		return &cp
	}
	resolved := *c
	_ = mergo.Merge(&resolved, *DefaultConfig)
	return &resolved
}

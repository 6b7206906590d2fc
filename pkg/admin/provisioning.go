// Package admin declares vhosts, users, exchanges and queues on a formed
// cluster through rabbitmqadmin.
package admin

import (
	"github.com/meftunca/rmqcluster/pkg/types"
)

// Credentials authenticate rabbitmqadmin against the management plugin.
type Credentials struct {
	User     string `mapstructure:"user" yaml:"user" json:"user"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
}

// Validate reports a missing user or password. The management CLI cannot
// authenticate with either left empty.
func (c Credentials) Validate() error {
	if c.User == "" {
		return types.ErrInvalidConfig("admin.user", "is required")
	}
	if c.Password == "" {
		return types.ErrInvalidConfig("admin.password", "is required")
	}
	return nil
}

// GuestCredentials returns the account every fresh broker ships with.
func GuestCredentials() Credentials {
	return Credentials{User: "guest", Password: "guest"}
}

// User is an account to create along with its permissions on the vhost.
type User struct {
	Name      string `mapstructure:"name" yaml:"name" json:"name"`
	Password  string `mapstructure:"password" yaml:"password" json:"-"`
	Tags      string `mapstructure:"tags" yaml:"tags" json:"tags"`
	Configure string `mapstructure:"configure" yaml:"configure" json:"configure"`
	Read      string `mapstructure:"read" yaml:"read" json:"read"`
	Write     string `mapstructure:"write" yaml:"write" json:"write"`
}

// Exchange is an exchange to declare. An empty Type means direct.
type Exchange struct {
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	Type string `mapstructure:"type" yaml:"type" json:"type"`
}

// Queue is a queue to declare and bind to Exchange with an empty routing key.
// An empty Node places the queue on the "rabbit" node.
type Queue struct {
	Name       string `mapstructure:"name" yaml:"name" json:"name"`
	Node       string `mapstructure:"node" yaml:"node" json:"node"`
	Exchange   string `mapstructure:"exchange" yaml:"exchange" json:"exchange"`
	AutoDelete bool   `mapstructure:"auto_delete" yaml:"auto_delete" json:"auto_delete"`
	Durable    bool   `mapstructure:"durable" yaml:"durable" json:"durable"`
}

// Provisioning describes everything declared on one vhost.
type Provisioning struct {
	VHost     string     `mapstructure:"vhost" yaml:"vhost" json:"vhost"`
	Users     []User     `mapstructure:"users" yaml:"users" json:"users"`
	Exchanges []Exchange `mapstructure:"exchanges" yaml:"exchanges" json:"exchanges"`
	Queues    []Queue    `mapstructure:"queues" yaml:"queues" json:"queues"`
}

// Validate checks that every declared object is named.
func (p Provisioning) Validate() error {
	ec := types.NewErrorCollector()

	if p.VHost == "" {
		ec.Add(types.ErrInvalidConfig("provisioning.vhost", "is required"))
	}
	for _, u := range p.Users {
		if u.Name == "" {
			ec.Add(types.ErrInvalidConfig("provisioning.users", "user without a name"))
		}
	}
	for _, e := range p.Exchanges {
		if e.Name == "" {
			ec.Add(types.ErrInvalidConfig("provisioning.exchanges", "exchange without a name"))
		}
	}
	for _, q := range p.Queues {
		if q.Name == "" {
			ec.Add(types.ErrInvalidConfig("provisioning.queues", "queue without a name"))
		}
		if q.Exchange == "" {
			ec.Add(types.ErrInvalidConfig("provisioning.queues", "queue "+q.Name+" is not bound to an exchange"))
		}
	}

	return ec.ToError()
}

// Secrets returns every password in p, for transcript redaction.
func (p Provisioning) Secrets() []string {
	out := make([]string, 0, len(p.Users))
	for _, u := range p.Users {
		out = append(out, u.Password)
	}
	return out
}

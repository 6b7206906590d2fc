package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/types"
)

const (
	defaultExchangeType = "direct"
	defaultQueueNode    = "rabbit"
	adminPermission     = ".*"
	adminTags           = "administrator"
)

// Provisioner runs rabbitmqadmin declarations against one node of the
// cluster. Declarations are cluster-wide, so any running node will do.
type Provisioner struct {
	exec executor.Executor
	cmds executor.Commands
	log  logrus.FieldLogger
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(exec executor.Executor, cmds executor.Commands, log logrus.FieldLogger) *Provisioner {
	return &Provisioner{
		exec: exec,
		cmds: cmds,
		log:  log.WithField("type", "admin/provisioner"),
	}
}

// Provision declares everything in spec on the node at address, authenticating
// as creds throughout.
func (p *Provisioner) Provision(ctx context.Context, address string, creds Credentials, spec Provisioning) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	d := p.open(address)
	defer d.close()

	if err := d.accounts(ctx, creds, spec); err != nil {
		return err
	}
	return d.topology(ctx, creds, spec)
}

// Bootstrap provisions a cluster that has no admin account yet. The vhost and
// users are declared as guest, then admin is created with full permissions on
// the vhost and the administrator tag, and the exchanges and queues are
// declared as admin.
func (p *Provisioner) Bootstrap(ctx context.Context, address string, admin Credentials, spec Provisioning) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := admin.Validate(); err != nil {
		return err
	}

	d := p.open(address)
	defer d.close()

	guest := GuestCredentials()
	if err := d.accounts(ctx, guest, spec); err != nil {
		return err
	}

	err := d.user(ctx, guest, spec.VHost, User{
		Name:      admin.User,
		Password:  admin.Password,
		Tags:      adminTags,
		Configure: adminPermission,
		Read:      adminPermission,
		Write:     adminPermission,
	})
	if err != nil {
		return err
	}

	return d.topology(ctx, admin, spec)
}

func (p *Provisioner) open(address string) *declarer {
	return &declarer{
		sess:  executor.Open(p.exec, p.cmds, address),
		admin: p.cmds.Admin,
		log:   p.log.WithField("address", address),
	}
}

// declarer issues declarations through a single node session.
type declarer struct {
	sess  *executor.Session
	admin string
	log   logrus.FieldLogger
}

func (d *declarer) close() {
	d.sess.Close()
}

func (d *declarer) accounts(ctx context.Context, creds Credentials, spec Provisioning) error {
	if err := d.declare(ctx, creds, "vhost", spec.VHost, "vhost", "name="+quote(spec.VHost)); err != nil {
		return err
	}
	for _, u := range spec.Users {
		if err := d.user(ctx, creds, spec.VHost, u); err != nil {
			return err
		}
	}
	return nil
}

func (d *declarer) topology(ctx context.Context, creds Credentials, spec Provisioning) error {
	vhost := quote(spec.VHost)

	for _, e := range spec.Exchanges {
		kind := e.Type
		if kind == "" {
			kind = defaultExchangeType
		}
		err := d.declare(ctx, creds, "exchange", e.Name, "exchange",
			"-V", vhost, "name="+quote(e.Name), "type="+quote(kind))
		if err != nil {
			return err
		}
	}

	for _, q := range spec.Queues {
		node := q.Node
		if node == "" {
			node = defaultQueueNode
		}
		err := d.declare(ctx, creds, "queue", q.Name, "queue",
			"-V", vhost,
			"node="+quote(node),
			"name="+quote(q.Name),
			"auto_delete="+strconv.FormatBool(q.AutoDelete),
			"durable="+strconv.FormatBool(q.Durable))
		if err != nil {
			return err
		}

		err = d.declare(ctx, creds, "binding", q.Exchange+"->"+q.Name, "binding",
			"-V", vhost,
			"source="+quote(q.Exchange),
			"destination_type=queue",
			"destination="+quote(q.Name),
			"routing_key=")
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *declarer) user(ctx context.Context, creds Credentials, vhost string, u User) error {
	err := d.declare(ctx, creds, "user", u.Name, "user",
		"-V", quote(vhost),
		"name="+quote(u.Name),
		"password="+quote(u.Password),
		"tags="+quote(u.Tags))
	if err != nil {
		return err
	}

	return d.declare(ctx, creds, "permission", u.Name, "permission",
		"vhost="+quote(vhost),
		"user="+quote(u.Name),
		"configure="+quote(u.Configure),
		"read="+quote(u.Read),
		"write="+quote(u.Write))
}

func (d *declarer) declare(ctx context.Context, creds Credentials, kind, name string, args ...string) error {
	line := fmt.Sprintf("%s -u %s -p %s declare %s",
		d.admin, quote(creds.User), quote(creds.Password), strings.Join(args, " "))

	res := d.sess.Run(ctx, line)
	if !res.Succeeded {
		d.log.WithFields(logrus.Fields{
			"kind": kind,
			"name": name,
			"as":   creds.User,
		}).WithError(res.Err).Error("declaration rejected")
		return types.ErrProvisioningFailed(kind, name, res.Output)
	}

	d.log.WithFields(logrus.Fields{"kind": kind, "name": name}).Debug("declared")
	return nil
}

// quote makes v a single shell word. Values made only of characters the shell
// leaves alone are passed through as is. An empty v becomes '' so that a flag
// like -p keeps its argument.
func quote(v string) string {
	if v == "" {
		return "''"
	}
	if strings.IndexFunc(v, unsafe) < 0 {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func unsafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_.@%+=:,/", r)
}

package executor

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/meftunca/rmqcluster/pkg/types"
)

// SSHConfig configures the ssh transport.
type SSHConfig struct {
	User                  string        `mapstructure:"user" yaml:"user" json:"user"`
	Password              string        `mapstructure:"password" yaml:"password" json:"-"`
	KeyFile               string        `mapstructure:"key_file" yaml:"key_file" json:"key_file"`
	KnownHosts            string        `mapstructure:"known_hosts" yaml:"known_hosts" json:"known_hosts"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key" json:"insecure_ignore_host_key"`
	Port                  int           `mapstructure:"port" yaml:"port" json:"port"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" json:"dial_timeout"`
	CommandTimeout        time.Duration `mapstructure:"command_timeout" yaml:"command_timeout" json:"command_timeout"`
	Sudo                  bool          `mapstructure:"sudo" yaml:"sudo" json:"sudo"`
}

// SSHExecutor runs commands over ssh. A client connection is dialled on the
// first command for an address and kept until Release is called for it.
type SSHExecutor struct {
	cfg       SSHConfig
	clientCfg *ssh.ClientConfig
	log       logrus.FieldLogger

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHExecutor builds the client configuration from cfg. It fails only on
// local problems such as an unreadable key file; remote problems surface later
// as failed Results.
func NewSSHExecutor(cfg SSHConfig, log logrus.FieldLogger) (*SSHExecutor, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read ssh key %s", cfg.KeyFile)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse ssh key %s", cfg.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	if len(auth) == 0 {
		return nil, errors.New("ssh requires a password or a key file")
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case cfg.InsecureIgnoreHostKey:
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	case cfg.KnownHosts != "":
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load known hosts %s", cfg.KnownHosts)
		}
		hostKeyCallback = cb
	default:
		return nil, errors.New("ssh requires known_hosts or insecure_ignore_host_key")
	}

	if cfg.Port == 0 {
		cfg.Port = 22
	}

	return &SSHExecutor{
		cfg: cfg,
		clientCfg: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
		},
		log:     log.WithField("type", "executor/ssh"),
		clients: make(map[string]*ssh.Client),
	}, nil
}

// Execute implements Executor.
func (e *SSHExecutor) Execute(ctx context.Context, address, commandLine string) Result {
	if e.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CommandTimeout)
		defer cancel()
	}

	log := e.log.WithFields(logrus.Fields{
		"address": address,
		"command": CommandKind(commandLine),
	})

	client, err := e.client(ctx, address)
	if err != nil {
		log.WithError(err).Debug("ssh dial failed")
		return Result{Err: err}
	}

	session, err := client.NewSession()
	if err != nil {
		// The cached connection is most likely dead; dial again next time.
		e.Release(address)
		err = types.ErrNodeUnreachable(address, errors.Wrap(err, "failed to open ssh session"))
		log.WithError(err).Debug("ssh session failed")
		return Result{Err: err}
	}
	defer session.Close()

	line := commandLine
	if e.cfg.Sudo {
		line = "sudo -S -p '' " + commandLine
		session.Stdin = strings.NewReader(e.cfg.Password + "\n")
	}

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := session.CombinedOutput(line)
		done <- outcome{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		session.Close()
		e.Release(address)
		err := types.ErrTimeout(address, commandLine, ctx.Err())
		log.WithError(err).Warn("ssh command abandoned")
		return Result{Err: err}
	case o := <-done:
		if o.err != nil {
			return Result{Output: string(o.out), Err: types.ErrCommandFailed(address, commandLine, o.err)}
		}
		return Result{Output: string(o.out), Succeeded: true}
	}
}

// Release closes the cached connection to address, if any.
func (e *SSHExecutor) Release(address string) {
	e.mu.Lock()
	client, ok := e.clients[address]
	delete(e.clients, address)
	e.mu.Unlock()

	if ok {
		client.Close()
	}
}

// Close releases every cached connection.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	clients := e.clients
	e.clients = make(map[string]*ssh.Client)
	e.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	return nil
}

// client returns the cached connection to address or dials a new one. The
// TCP connect and the ssh handshake are both bounded by DialTimeout and by
// ctx, so a host that accepts connections but never speaks cannot stall the
// caller. The lock is not held while dialling.
func (e *SSHExecutor) client(ctx context.Context, address string) (*ssh.Client, error) {
	e.mu.Lock()
	c, ok := e.clients[address]
	e.mu.Unlock()
	if ok {
		return c, nil
	}

	c, err := e.dial(ctx, address)
	if err != nil {
		return nil, types.ErrNodeUnreachable(address, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.clients[address]; ok {
		c.Close()
		return existing, nil
	}
	e.clients[address] = c
	return c, nil
}

func (e *SSHExecutor) dial(ctx context.Context, address string) (*ssh.Client, error) {
	if e.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DialTimeout)
		defer cancel()
	}

	hostPort := e.hostPort(address)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", hostPort)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, hostPort, e.clientCfg)
	if !stop() || err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, errors.Wrapf(err, "ssh handshake with %s failed", hostPort)
	}

	conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (e *SSHExecutor) hostPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(e.cfg.Port))
}

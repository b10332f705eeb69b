package tunnel

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vpnswap/internal/execx"
	"vpnswap/internal/logx"
	"vpnswap/internal/model"
	"vpnswap/internal/settings"
)

// Settings key suffixes under the instance prefix (wgc1_ep_addr, ...).
const (
	keyAddress   = "_ep_addr"
	keyPublicKey = "_ppub"
	keyHostname  = "_desc"
	keyEnable    = "_enable"
)

// Controller applies endpoints to one tunnel instance and restarts it.
type Controller struct {
	store   settings.Store
	r       execx.Runner
	prefix  string
	iface   string
	restart []string
	log     *zap.Logger
}

// Options configures NewController.
type Options struct {
	Prefix         string
	Interface      string
	RestartCommand []string
}

func NewController(store settings.Store, r execx.Runner, opts Options, log *zap.Logger) *Controller {
	if r == nil {
		r = execx.NewOSRunner(nil, nil)
	}
	return &Controller{
		store:   store,
		r:       r,
		prefix:  opts.Prefix,
		iface:   opts.Interface,
		restart: opts.RestartCommand,
		log:     logx.OrNop(log).Named("tunnel"),
	}
}

// Interface is the kernel interface name of the tunnel.
func (c *Controller) Interface() string {
	return c.iface
}

// Enabled reports whether the instance is switched on in the settings store.
func (c *Controller) Enabled(ctx context.Context) (bool, error) {
	v, err := c.store.Get(ctx, c.prefix+keyEnable)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(v) == "1", nil
}

// Active reads the endpoint currently recorded for the instance.
func (c *Controller) Active(ctx context.Context) (model.Endpoint, error) {
	var ep model.Endpoint
	var err error
	if ep.Address, err = c.store.Get(ctx, c.prefix+keyAddress); err != nil {
		return model.Endpoint{}, err
	}
	if ep.PublicKey, err = c.store.Get(ctx, c.prefix+keyPublicKey); err != nil {
		return model.Endpoint{}, err
	}
	if ep.Hostname, err = c.store.Get(ctx, c.prefix+keyHostname); err != nil {
		return model.Endpoint{}, err
	}
	return ep, nil
}

// Apply records ep as the active endpoint, commits, and restarts the tunnel.
// It returns once the restart command returns.
func (c *Controller) Apply(ctx context.Context, ep model.Endpoint) error {
	if ep.Address == "" {
		return fmt.Errorf("endpoint %q has no address", ep.Hostname)
	}
	sets := [][2]string{
		{c.prefix + keyAddress, ep.Address},
		{c.prefix + keyPublicKey, ep.PublicKey},
		{c.prefix + keyHostname, ep.Hostname},
	}
	for _, kv := range sets {
		if err := c.store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	if err := c.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.log.Info("endpoint applied", zap.String("hostname", ep.Hostname), zap.String("address", ep.Address))
	return c.Restart(ctx)
}

// Restart runs the configured restart command.
func (c *Controller) Restart(ctx context.Context) error {
	if len(c.restart) == 0 {
		return fmt.Errorf("restart command is not configured")
	}
	if err := c.r.Run(ctx, c.restart[0], c.restart[1:]...); err != nil {
		return fmt.Errorf("restart %s: %w", c.iface, err)
	}
	c.log.Debug("tunnel restarted", zap.String("iface", c.iface))
	return nil
}

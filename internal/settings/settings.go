// Package settings is the persistent key/value store holding the active tunnel
// endpoint. On the router it is nvram; elsewhere a YAML file stands in.
package settings

import (
	"context"
	"fmt"

	"vpnswap/internal/execx"
)

// Store is a key/value store with an explicit commit.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Commit(ctx context.Context) error
}

// Open returns the backend named by kind ("nvram" or "file").
func Open(kind, path string, r execx.Runner) (Store, error) {
	switch kind {
	case "nvram", "":
		return NewNVRAM(r), nil
	case "file":
		return OpenFile(path)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", kind)
	}
}

// NVRAM drives the firmware's nvram tool.
type NVRAM struct {
	r execx.Runner
}

func NewNVRAM(r execx.Runner) *NVRAM {
	return &NVRAM{r: r}
}

func (n *NVRAM) Get(ctx context.Context, key string) (string, error) {
	return n.r.Output(ctx, "nvram", "get", key)
}

func (n *NVRAM) Set(ctx context.Context, key, value string) error {
	return n.r.Run(ctx, "nvram", "set", key+"="+value)
}

func (n *NVRAM) Commit(ctx context.Context) error {
	return n.r.Run(ctx, "nvram", "commit")
}

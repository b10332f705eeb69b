package execx

import (
	"context"
	"strings"
	"sync"
)

// Script is a Runner that records every command and answers from a handler.
// It backs the unit tests of every package that shells out.
type Script struct {
	mu      sync.Mutex
	cmds    []string
	Handler func(cmd string) (string, error)
}

func (s *Script) Run(ctx context.Context, name string, args ...string) error {
	_, err := s.Output(ctx, name, args...)
	return err
}

func (s *Script) Output(_ context.Context, name string, args ...string) (string, error) {
	line := name
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	s.mu.Lock()
	s.cmds = append(s.cmds, line)
	s.mu.Unlock()
	if s.Handler == nil {
		return "", nil
	}
	return s.Handler(line)
}

// Commands returns the recorded command lines in call order.
func (s *Script) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cmds))
	copy(out, s.cmds)
	return out
}

var _ Runner = (*Script)(nil)

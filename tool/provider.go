package tool

import "context"

// Provider supplies a set of tools that can be registered with an agent.
type Provider interface {
	Tools(ctx context.Context) ([]*Tool, error)
}

// RegisterFrom registers every tool supplied by p.
func (r *Registry) RegisterFrom(ctx context.Context, p Provider) error {
	tools, err := p.Tools(ctx)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

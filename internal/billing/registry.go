package billing

import (
	"fmt"
	"sort"

	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
)

// Registry maps app names to their Service. It is read-only once built and
// safe for concurrent use.
type Registry struct {
	services map[string]*Service
}

func NewRegistry(services ...*Service) (*Registry, error) {
	r := &Registry{services: make(map[string]*Service, len(services))}
	for _, s := range services {
		if _, dup := r.services[s.AppName()]; dup {
			return nil, domainErrors.NewConfigurationError("AppName", fmt.Sprintf("app %q registered twice", s.AppName()))
		}
		r.services[s.AppName()] = s
	}
	return r, nil
}

func (r *Registry) Get(app string) (*Service, error) {
	s, ok := r.services[app]
	if !ok {
		return nil, fmt.Errorf("%q: %w", app, domainErrors.ErrAppNotFound)
	}
	return s, nil
}

// Apps returns the registered app names in sorted order.
func (r *Registry) Apps() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

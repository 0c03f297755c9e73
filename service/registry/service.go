// Package registry holds immutable workflow templates.  Templates are
// registered programmatically or loaded from YAML definitions at startup;
// reads after registration are side-effect free.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/cascata-io/cascata/model"
)

var (
	// ErrTemplateNotFound is returned by Get for an unknown template id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidTemplate is returned by Register when the step graph is
	// structurally unsound (dangling successor, duplicate id, no entry).
	ErrInvalidTemplate = errors.New("invalid template")
)

// Service is the template registry.
type Service struct {
	mu        sync.RWMutex
	templates map[string]*model.Template

	fs      afs.Service
	baseURL string
	log     *logrus.Logger
}

// Option customises the registry.
type Option func(*Service)

// WithBaseURL points LoadAll at a directory of YAML template definitions.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// WithFS replaces the file service used by LoadAll.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates an empty registry.
func New(options ...Option) *Service {
	ret := &Service{templates: make(map[string]*model.Template)}
	for _, option := range options {
		option(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	return ret
}

// Register validates and stores a template.  Re-registering an id
// overwrites the previous definition; templates are otherwise immutable.
func (s *Service) Register(template *model.Template) error {
	if template == nil {
		return fmt.Errorf("%w: template is nil", ErrInvalidTemplate)
	}
	if issues := template.Validate(); len(issues) > 0 {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, template.ID, errors.Join(issues...))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.ID] = template
	return nil
}

// Get returns the template with the given id.
func (s *Service) Get(id string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return template, nil
}

// List returns all registered templates.
func (s *Service) List() []*model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out
}

// LoadAll loads every *.yaml/*.yml definition under the configured base
// URL.  A file that fails to decode or validate aborts the load so that a
// misconfigured deployment is caught at startup, not at first use.
func (s *Service) LoadAll(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return fmt.Errorf("failed to list templates at %s: %w", s.baseURL, err)
	}
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		name := object.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return fmt.Errorf("failed to download template %s: %w", object.URL(), err)
		}
		template, err := s.DecodeYAML(data)
		if err != nil {
			return fmt.Errorf("failed to decode template %s: %w", name, err)
		}
		if err := s.Register(template); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"template": template.ID, "source": name}).Info("template loaded")
	}
	return nil
}

// DecodeYAML parses a single template definition.
func (s *Service) DecodeYAML(data []byte) (*model.Template, error) {
	template := &model.Template{}
	if err := yaml.Unmarshal(data, template); err != nil {
		return nil, err
	}
	return template, nil
}

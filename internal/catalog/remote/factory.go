package remote

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"report_catalog/internal/catalog"

	"github.com/sirupsen/logrus"
)

// Factory builds remote sources from repository definitions. Sources built
// by one factory share its transport.
type Factory struct {
	transport      http.RoundTripper
	defaultTimeout time.Duration
	logger         *logrus.Logger
}

// NewFactory creates a factory. A non-positive defaultTimeout means DefaultTimeout.
func NewFactory(defaultTimeout time.Duration, logger *logrus.Logger) *Factory {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Factory{
		transport:      http.DefaultTransport,
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (f *Factory) WithTransport(rt http.RoundTripper) *Factory {
	f.transport = rt
	return f
}

// NewSource validates def and returns a source for it.
func (f *Factory) NewSource(def catalog.RemoteDefinition, engineVersion string) (catalog.Source, error) {
	if err := catalog.ValidateSourceID(def.ID); err != nil {
		return nil, err
	}
	if engineVersion == "" {
		return nil, catalog.ErrMissingEngineVersion
	}

	base, err := url.Parse(strings.TrimSpace(def.URL))
	if err != nil {
		return nil, fmt.Errorf("parse repository url %q: %w", def.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("repository url %q: scheme must be http or https", def.URL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("repository url %q: missing host", def.URL)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}

	f.logger.WithFields(logrus.Fields{
		"source_id": def.ID,
		"url":       base.String(),
		"timeout":   timeout,
	}).Debug("Remote report source created")

	return &Source{
		id:            def.ID,
		name:          name,
		baseURL:       strings.TrimRight(base.String(), "/") + ExportPath,
		login:         def.Login,
		password:      def.Password,
		engineVersion: engineVersion,
		client:        &http.Client{Transport: f.transport, Timeout: timeout},
		logger:        f.logger,
	}, nil
}

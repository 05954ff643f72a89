// Package app assembles the dispatch stack shared by the API server, the
// scheduled worker and the operational command-line tools. Each binary wires
// the same YAML configuration, hook signing, template rendering, registries
// and Postgres repositories; this package keeps that in one place.
package app

import (
	"database/sql"
	"fmt"
	"os"

	"courier/internal/config"
	"courier/internal/infra/adapter/persistence/postgres"
	"courier/internal/message"
	"courier/internal/registry"
	"courier/internal/repository"
	"courier/internal/usecase/dispatch"
)

// Configuration and template locations, overridable per deployment.
const (
	EnvSecurityConfigPath   = "SECURITY_CONFIG_PATH"
	EnvMessengersConfigPath = "MESSENGERS_CONFIG_PATH"
	EnvTemplateRoot         = "TEMPLATE_ROOT"
	EnvSiteURL              = "SITE_URL"

	DefaultSecurityConfigPath   = "configs/security.yaml"
	DefaultMessengersConfigPath = "configs/messengers.yaml"

	// DefaultTemplateRoot is the directory holding the templates/ tree.
	// Deduced template paths carry the templates/ prefix, so the renderer
	// filesystem is rooted one level above it.
	DefaultTemplateRoot = "."
)

// Stack is the wired dispatch stack.
type Stack struct {
	Service    *dispatch.Service
	Messengers *registry.Messengers
	Types      *registry.MessageTypes
	Security   *config.SecurityConfig
	Signer     *message.Signer

	// Subscriptions is exposed for the preference API, which reads and
	// replaces subscription rows directly rather than going through the
	// dispatch service.
	Subscriptions repository.SubscriptionRepository

	// EnabledMessengers counts the channels the YAML configuration turned
	// on, for startup logging.
	EnabledMessengers int
}

// Build wires the full stack on top of an open database handle. The caller
// owns the handle and its lifetime.
//
// Configuration paths come from SECURITY_CONFIG_PATH, MESSENGERS_CONFIG_PATH
// and TEMPLATE_ROOT, with repository-relative defaults.
func Build(database *sql.DB) (*Stack, error) {
	securityConfig, err := config.LoadSecurityConfig(Path(EnvSecurityConfigPath, DefaultSecurityConfigPath))
	if err != nil {
		return nil, fmt.Errorf("load security config: %w", err)
	}

	signerSecret, err := securityConfig.SignerSecret()
	if err != nil {
		return nil, fmt.Errorf("resolve hook signer secret: %w", err)
	}
	signer := message.NewSigner(string(signerSecret))
	links := message.NewHookLinks(securityConfig.HookBaseURL(), signer)

	renderer := message.NewTemplateRenderer(os.DirFS(Path(EnvTemplateRoot, DefaultTemplateRoot)))
	compiler := message.NewCompiler(SiteURL(securityConfig), renderer, links)

	messengersConfig, err := config.LoadMessengersConfig(Path(EnvMessengersConfigPath, DefaultMessengersConfigPath))
	if err != nil {
		return nil, fmt.Errorf("load messengers config: %w", err)
	}

	built, err := config.BuildMessengers(messengersConfig, links)
	if err != nil {
		return nil, fmt.Errorf("build messengers: %w", err)
	}
	messengers := registry.NewMessengers()
	messengers.Register(built...)

	types := registry.NewMessageTypes()
	registry.RegisterBuiltinMessageTypes(types)

	subscriptions := postgres.NewSubscriptionRepo(database)

	svc := dispatch.NewService(
		postgres.NewMessageRepo(database),
		postgres.NewDispatchRepo(database),
		subscriptions,
		messengers,
		types,
		compiler,
		nil, // no recipient directory; address-less subscriptions are skipped
	)

	return &Stack{
		Service:           svc,
		Messengers:        messengers,
		Types:             types,
		Security:          securityConfig,
		Signer:            signer,
		Subscriptions:     subscriptions,
		EnabledMessengers: messengersConfig.EnabledCount(),
	}, nil
}

// Path reads a file path from the environment with a default.
func Path(envKey, defaultPath string) string {
	if path := os.Getenv(envKey); path != "" {
		return path
	}
	return defaultPath
}

// SiteURL resolves the public site base URL compiled into message bodies.
// SITE_URL wins; otherwise the hook base URL doubles as the site address.
func SiteURL(securityConfig *config.SecurityConfig) string {
	if u := os.Getenv(EnvSiteURL); u != "" {
		return u
	}
	return securityConfig.HookBaseURL()
}

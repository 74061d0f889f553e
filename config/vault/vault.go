// Package vault provides a Kong resolver that takes flag defaults from a Vault KV v2 secret.
// It lets the connection string, which carries a password, stay out of the environment.
package vault

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/alecthomas/kong"
	"github.com/gwatts/rootcerts"
	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/kubernetes"

	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/o11y"
)

const (
	defaultServiceAccountRole = "default"
	defaultSecretMount        = "secret"
)

type Config struct {
	DisableTLS bool
	Host       string
	Port       int
	SecretName string
	// Token is used when set, otherwise the Kubernetes service account logs in.
	Token secret.String
}

// Resolver is a kong.Resolver. Values are matched to flags by the first env name of the flag.
type Resolver struct {
	data map[string]interface{}
}

var _ kong.Resolver = (*Resolver)(nil)

func New(ctx context.Context, cfg Config) (_ *Resolver, err error) {
	ctx, span := o11y.StartSpan(ctx, "vault: load secret")
	defer o11y.End(span, &err)
	span.AddField("secret", cfg.SecretName)

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token.Raw())
	} else {
		err = kubernetesLogin(ctx, client)
		if err != nil {
			return nil, err
		}
	}

	sec, err := client.KVv2(defaultSecretMount).Get(ctx, cfg.SecretName)
	if err != nil {
		return nil, fmt.Errorf("vault: get secret %q: %w", cfg.SecretName, err)
	}
	span.AddField("keys", len(sec.Data))
	return FromData(sec.Data), nil
}

// FromData builds a resolver over already fetched secret data.
func FromData(data map[string]interface{}) *Resolver {
	return &Resolver{data: data}
}

func newClient(cfg Config) (*api.Client, error) {
	c := api.DefaultConfig()
	proto := "http"
	if !cfg.DisableTLS {
		proto = "https"
		t, ok := c.HttpClient.Transport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("vault: unexpected transport %T", c.HttpClient.Transport)
		}
		t.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    rootcerts.ServerCertPool(),
			ServerName: cfg.Host,
		}
	}
	c.Address = fmt.Sprintf("%s://%s:%d", proto, cfg.Host, cfg.Port)

	client, err := api.NewClient(c)
	if err != nil {
		return nil, fmt.Errorf("vault: create client: %w", err)
	}
	return client, nil
}

func kubernetesLogin(ctx context.Context, client *api.Client) error {
	auth, err := kubernetes.NewKubernetesAuth(defaultServiceAccountRole)
	if err != nil {
		return fmt.Errorf("vault: kubernetes auth: %w", err)
	}
	_, err = client.Auth().Login(ctx, auth)
	if err != nil {
		return fmt.Errorf("vault: login: %w", err)
	}
	return nil
}

func (r *Resolver) Validate(*kong.Application) error {
	return nil
}

// Resolve ignores the command hierarchy, so env names must be unique across commands.
func (r *Resolver) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (interface{}, error) {
	if r.data == nil || len(flag.Envs) == 0 {
		return nil, nil
	}
	return r.data[flag.Envs[0]], nil
}

// Parse parses the command line into cli, resolving defaults from Vault when a host is set.
// Vault values take precedence over the environment.
func Parse(ctx context.Context, cli interface{}, cfg Config, args []string) error {
	var opts []kong.Option
	if cfg.Host != "" {
		r, err := New(ctx, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, kong.Resolvers(r))
	}
	parser, err := kong.New(cli, opts...)
	if err != nil {
		return err
	}
	_, err = parser.Parse(args)
	return err
}

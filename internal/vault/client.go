package vault

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

type Option func(*config)

type config struct {
	address  string
	token    string
	roleID   string
	roleName string
}

// Client resolves backup credentials (database passwords, S3 access keys)
// from Vault KV paths named in the configuration.
type Client struct {
	api    *vault.Client
	config *config
}

// DBCredentials is the KV payload for a database source.
type DBCredentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// S3Keys is the KV payload for an S3 destination.
type S3Keys struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func WithAddress(address string) Option {
	return func(c *config) {
		c.address = address
	}
}

func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

func WithAppRole(roleID, roleName string) Option {
	return func(c *config) {
		c.roleID = roleID
		c.roleName = roleName
	}
}

// NewClient creates and initializes a Vault Client using provided options.
// It will perform AppRole login if roleID and roleName are both set,
// otherwise a static token (from env or WithToken) is used.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}

	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	client := &Client{api: api, config: cfg}

	if cfg.token != "" {
		client.api.SetToken(cfg.token)
	}

	if cfg.roleID != "" && cfg.roleName != "" {
		if err := client.loginAppRole(ctx); err != nil {
			return nil, fmt.Errorf("%w: approle login: %v", ErrClientInit, err)
		}
	}

	return client, nil
}

// loginAppRole performs AppRole login using the configured roleID and
// roleName.
func (c *Client) loginAppRole(ctx context.Context) error {
	path := fmt.Sprintf(approleSecretIDPath, c.config.roleName)
	resp, err := c.api.Logical().WriteWithContext(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("generate secret_id: %w", err)
	}
	sid, ok := resp.Data["secret_id"].(string)
	if !ok || sid == "" {
		return fmt.Errorf("no secret_id returned from %s", path)
	}

	loginData := map[string]any{
		"role_id":   c.config.roleID,
		"secret_id": sid,
	}
	loginResp, err := c.api.Logical().WriteWithContext(ctx, approleLoginPath, loginData)
	if err != nil {
		return fmt.Errorf("approle login request: %w", err)
	}
	if loginResp.Auth == nil || loginResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token in login response")
	}
	c.api.SetToken(loginResp.Auth.ClientToken)
	return nil
}

// read fetches and decodes one KV secret payload into out.
func (c *Client) read(ctx context.Context, path string, out any) error {
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return err
	}
	if secret == nil {
		return fmt.Errorf("no data found at path: %s", path)
	}
	data := secret.Data
	// KV v2 nests the payload one level down.
	if inner, ok := secret.Data["data"].(map[string]any); ok {
		data = inner
	}
	if err := mapstructure.Decode(data, out); err != nil {
		return fmt.Errorf("decode secret at %s: %w", path, err)
	}
	return nil
}

// DBPassword returns the database password stored at path.
func (c *Client) DBPassword(ctx context.Context, path string) (string, error) {
	var creds DBCredentials
	if err := c.read(ctx, path, &creds); err != nil {
		return "", err
	}
	if creds.Password == "" {
		return "", fmt.Errorf("no password at path: %s", path)
	}
	return creds.Password, nil
}

// S3Credentials returns the access key pair stored at path.
func (c *Client) S3Credentials(ctx context.Context, path string) (string, string, error) {
	var keys S3Keys
	if err := c.read(ctx, path, &keys); err != nil {
		return "", "", err
	}
	if keys.AccessKey == "" || keys.SecretKey == "" {
		return "", "", fmt.Errorf("incomplete s3 keys at path: %s", path)
	}
	return keys.AccessKey, keys.SecretKey, nil
}

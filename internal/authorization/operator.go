package authorization

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/inkwell/internal/authorization/keyhash"
	"github.com/smallbiznis/inkwell/internal/config"
	"go.uber.org/zap"
)

type operatorKey struct {
	operator Operator
	hash     string
}

// KeyAuthenticator checks "<name>.<secret>" bearer credentials against the
// configured "name:role:argon2id-hash" operator keys.
type KeyAuthenticator struct {
	log  *zap.Logger
	keys map[string]operatorKey
}

func NewKeyAuthenticator(cfg config.Config, log *zap.Logger) (*KeyAuthenticator, error) {
	keys := make(map[string]operatorKey, len(cfg.OperatorKeys))
	for _, raw := range cfg.OperatorKeys {
		key, err := parseOperatorKey(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := keys[key.operator.Name]; dup {
			return nil, fmt.Errorf("operator %q configured twice", key.operator.Name)
		}
		keys[key.operator.Name] = key
	}

	log = log.Named("authorization.operator")
	if len(keys) == 0 {
		log.Warn("no operator keys configured, admin endpoints will reject every request")
	}
	return &KeyAuthenticator{log: log, keys: keys}, nil
}

func (a *KeyAuthenticator) Authenticate(ctx context.Context, credential string) (Operator, error) {
	name, secret, ok := strings.Cut(strings.TrimSpace(credential), ".")
	if !ok || name == "" || secret == "" {
		return Operator{}, ErrUnauthorized
	}

	key, found := a.keys[name]
	if !found || !keyhash.Verify(secret, key.hash) {
		a.log.Warn("operator authentication failed", zap.String("operator", name))
		return Operator{}, ErrUnauthorized
	}
	return key.operator, nil
}

func parseOperatorKey(raw string) (operatorKey, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 3)
	if len(parts) != 3 {
		return operatorKey{}, fmt.Errorf("operator key must be name:role:hash")
	}
	name := strings.TrimSpace(parts[0])
	role := strings.ToLower(strings.TrimSpace(parts[1]))
	hash := strings.TrimSpace(parts[2])

	if name == "" || strings.Contains(name, ".") {
		return operatorKey{}, fmt.Errorf("operator name %q is invalid", name)
	}
	switch role {
	case RoleAdmin, RoleSupport:
	default:
		return operatorKey{}, fmt.Errorf("operator %q has unknown role %q", name, role)
	}
	if hash == "" {
		return operatorKey{}, fmt.Errorf("operator %q has no key hash", name)
	}

	return operatorKey{operator: Operator{Name: name, Role: role}, hash: hash}, nil
}

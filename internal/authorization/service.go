package authorization

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Operator is an authenticated support or admin user of the system console.
type Operator struct {
	Name string
	Role string
}

// Subject is the casbin subject for the operator.
func (o Operator) Subject() string {
	return "operator:" + o.Name
}

type Service interface {
	Authorize(ctx context.Context, operator Operator, object string, action string) error
}

// Authenticator resolves a bearer credential to an operator.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Operator, error)
}

package core

// authz.go gates custodian-changing operations behind an external
// controller check, the same role-cache-over-a-backing-store pattern
// access_control.go's AccessController uses, generalised from ledger-backed
// roles to a single "is this principal a controller" capability.

import "context"

// ControllerChecker answers whether a principal is authorized to perform
// controller-only operations (such as reassigning the custodian). A
// concrete implementation would proxy this to the platform's own
// management surface; this engine only specifies the interface a caller
// must satisfy, since that check is itself an external collaborator
// (spec.md §1).
type ControllerChecker interface {
	IsController(ctx context.Context, caller Principal) (bool, error)
}

// AlwaysController is a ControllerChecker that authorizes every caller,
// useful for single-operator deployments and tests.
type AlwaysController struct{}

func (AlwaysController) IsController(ctx context.Context, caller Principal) (bool, error) {
	return true, nil
}

// Authorizer gates custodian and lifecycle operations.
type Authorizer struct {
	controller ControllerChecker
	cells      *DurableCells
}

// NewAuthorizer constructs an authorizer backed by the given controller
// checker and durable cells.
func NewAuthorizer(controller ControllerChecker, cells *DurableCells) *Authorizer {
	if controller == nil {
		controller = AlwaysController{}
	}
	return &Authorizer{controller: controller, cells: cells}
}

// RequireCustodian returns ErrUnauthorized unless caller is the currently
// configured custodian, except on the Local network, which bypasses the
// check entirely (spec.md §4.10/§7).
func (a *Authorizer) RequireCustodian(caller Principal) error {
	if a.cells.Network() == NetworkLocal {
		return nil
	}
	if !a.cells.Custodian().Equal(caller) {
		return ErrUnauthorized
	}
	return nil
}

// RequireController returns ErrUnauthorized unless caller is recognised by
// the injected ControllerChecker.
func (a *Authorizer) RequireController(ctx context.Context, caller Principal) error {
	ok, err := a.controller.IsController(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

package core

import (
	"context"
	"errors"
	"testing"
)

type denyController struct{}

func (denyController) IsController(ctx context.Context, caller Principal) (bool, error) {
	return false, nil
}

func TestAuthorizerRequireCustodian(t *testing.T) {
	cells := NewDurableCells()
	cells.SetCustodian(Principal{1, 2, 3})
	az := NewAuthorizer(AlwaysController{}, cells)

	if err := az.RequireCustodian(Principal{1, 2, 3}); err != nil {
		t.Fatalf("expected custodian to be authorized: %v", err)
	}
	if err := az.RequireCustodian(Principal{9, 9}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-custodian caller, got %v", err)
	}
}

func TestAuthorizerRequireCustodianBypassedOnLocal(t *testing.T) {
	cells := NewDurableCells()
	cells.SetCustodian(Principal{1, 2, 3})
	cells.SetNetwork(NetworkLocal)
	az := NewAuthorizer(AlwaysController{}, cells)

	if err := az.RequireCustodian(Principal{9, 9}); err != nil {
		t.Fatalf("expected Local network to bypass the custodian check, got %v", err)
	}
}

func TestAuthorizerRequireController(t *testing.T) {
	cells := NewDurableCells()
	az := NewAuthorizer(denyController{}, cells)

	if err := az.RequireController(context.Background(), Principal{1}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from denying controller, got %v", err)
	}

	az2 := NewAuthorizer(AlwaysController{}, cells)
	if err := az2.RequireController(context.Background(), Principal{1}); err != nil {
		t.Fatalf("expected AlwaysController to authorize, got %v", err)
	}
}

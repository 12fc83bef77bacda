package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/principal"
)

// addAdmin creates a tenant admin, or reactivates an existing one with a new
// password.
func (cli *commandLine) addAdmin(tenantID, uname, name, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if prin, err := cli.principalRepo.GetPrincipalByUsername(ctx, principal.RoleAdmin, uname); err == nil {
		if err := prin.SetPassword(pwd); err != nil {
			return err
		}
		if err := cli.principalRepo.UpdateCredential(ctx, prin.ID, prin.CredentialHash); err != nil {
			return err
		}
		return cli.principalRepo.SetPrincipalActive(ctx, prin.TenantID, prin.ID, true)
	} else if err != principal.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	prin := principal.Principal{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Role:      principal.RoleAdmin,
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := prin.SetPassword(pwd); err != nil {
		return err
	}
	_, err := cli.principalRepo.CreateAdmin(ctx, prin)
	return err
}

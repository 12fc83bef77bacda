package main

import (
	"context"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/principal"
)

func (cli *commandLine) resetPassword(role principal.Role, uname, pwd string) error {
	ctx := context.Background()
	prin, err := cli.principalRepo.GetPrincipalByUsername(ctx, role, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if err := prin.SetPassword(pwd); err != nil {
		return err
	}
	return cli.principalRepo.UpdateCredential(ctx, prin.ID, prin.CredentialHash)
}

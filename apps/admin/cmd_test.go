package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chuodev/chuo/core/principal"
	dummydb "github.com/chuodev/chuo/storage/database/dummy"
)

var prinRepo principal.Repository

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	prinRepo = dummydb.NewPrincipalRepository(db)

	return &commandLine{
		principalRepo: prinRepo,
	}
}

func createAdmin(t *testing.T, tenantID, uname, pwd string) principal.Principal {
	t.Helper()
	now := time.Now().UTC()
	prin := principal.Principal{
		ID: uname, TenantID: tenantID, Role: principal.RoleAdmin,
		Name: uname, Username: uname, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := prin.SetPassword(pwd); err != nil {
		t.Fatal(err)
	}
	prin, err := prinRepo.CreateAdmin(context.Background(), prin)
	if err != nil {
		t.Fatal(err)
	}
	return prin
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var called bool
	migrateFunc = func(db *sqlx.DB) error {
		called = true
		return nil
	}

	if err := cli.run([]string{"admin", "migrate"}); err != nil {
		t.Fatalf("cli.run() error = %v, wantErr false", err)
	}
	if !called {
		t.Error("migrate did not run")
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	existing := createAdmin(t, "t1", "amina", "0ld&pwd11")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "missing tenant", args: []string{"addadmin", "-username", "neema"}, wantErr: errHelp},
		{name: "no password", args: []string{"addadmin", "-tenant", "t1", "-username", "neema"}, wantErr: errHelp},
		{name: "new admin", args: []string{"addadmin", "-tenant", "t1", "-username", "neema", "-name", "Neema"}, pwd: "N3w&pwd11"},
		{name: "existing admin gets new password", args: []string{"addadmin", "-tenant", "t1", "-username", "amina"}, pwd: "R0tated&1"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	prin, err := prinRepo.GetPrincipalByUsername(context.Background(), principal.RoleAdmin, "neema")
	if err != nil {
		t.Fatalf("GetPrincipalByUsername() error = %v, wantErr false", err)
	}
	if prin.TenantID != "t1" || !prin.IsActive {
		t.Errorf("created admin = %+v; want active in tenant t1", prin)
	}
	if err := prin.CheckPassword("N3w&pwd11"); err != nil {
		t.Errorf("CheckPassword() error = %v, wantErr false", err)
	}

	refreshed, err := prinRepo.GetPrincipal(context.Background(), existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(refreshed.CredentialHash, existing.CredentialHash) {
		t.Error("failed to rotate existing admin's password")
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	adm := createAdmin(t, "t1", "amina", "0ld&pwd11")

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"resetpassword", "-role", "lol", "-username", "amina"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "amina"}, wantErr: errHelp},
		{name: "principal not found", args: []string{"resetpassword", "-username", "ghost"}, pwd: "lol", wantErr: principal.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-username", "amina"}, pwd: "N3w&pwd11"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := prinRepo.GetPrincipal(context.Background(), adm.ID)
				if err != nil {
					t.Fatalf("GetPrincipal() failed, %v", err)
				}
				if bytes.Equal(refreshed.CredentialHash, adm.CredentialHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

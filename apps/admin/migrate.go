package main

import (
	"github.com/chuodev/chuo/storage/database/postgres"
)

var migrateFunc = postgres.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}

// Package dummydb is an in-memory store used by tests and local development.
// It honors the same contracts as the Postgres store: atomic insert-if-absent
// on the attendance key and atomic payment settlement.
package dummydb

import (
	"sync"

	"github.com/chuodev/chuo/core/alerts"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
)

type (
	DB struct {
		principal  *principalTable
		attendance *attendanceTable
		fees       *feesTable
		exams      *examTable
	}

	principalTable struct {
		sync.RWMutex
		admins   map[string]*principal.Principal
		staff    map[string]*principal.Staff
		students map[string]*principal.Student
	}

	attendanceTable struct {
		sync.RWMutex
		records   map[string]*attendance.Record // keyed by Record.Key()
		recordIDs map[string]string             // id -> key
		followups map[string]*attendance.FollowUp
	}

	feesTable struct {
		sync.RWMutex
		payments []fees.Payment
		receipts map[string]bool // tenantID|receiptNumber
	}

	examTable struct {
		sync.RWMutex
		results []alerts.ExamResult
	}
)

func Open() (*DB, error) {
	db := &DB{
		principal: &principalTable{
			admins:   make(map[string]*principal.Principal),
			staff:    make(map[string]*principal.Staff),
			students: make(map[string]*principal.Student),
		},
		attendance: &attendanceTable{
			records:   make(map[string]*attendance.Record),
			recordIDs: make(map[string]string),
			followups: make(map[string]*attendance.FollowUp),
		},
		fees: &feesTable{
			receipts: make(map[string]bool),
		},
		exams: &examTable{},
	}
	return db, nil
}

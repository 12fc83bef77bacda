package principal

import (
	"testing"

	"github.com/chuodev/chuo/core"
)

func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		wantErr bool
	}{
		{name: "too short", pwd: "aB1!", wantErr: true},
		{name: "has whitespace", pwd: "aB1! aB1!", wantErr: true},
		{name: "all numeric", pwd: "12345678", wantErr: true},
		{name: "missing uppercase", pwd: "weak1pwd!", wantErr: true},
		{name: "missing digit", pwd: "Weakpwd!!", wantErr: true},
		{name: "missing special", pwd: "Weak1pwd", wantErr: true},
		{name: "strong password", pwd: "Str0ng&pwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := ChangePassword{Password: tt.pwd, PasswordConfirm: tt.pwd}
			err := cp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPasswordSimilarity(t *testing.T) {
	ns := NewStaff{
		TenantID:        "t1",
		Name:            "Asha Mwinyi",
		Username:        "ashamwinyi",
		Email:           "asha@test.test",
		Password:        "Ashamwinyi1!",
		PasswordConfirm: "Ashamwinyi1!",
		Salary:          SalaryPolicy{Type: SalaryMonthlyFixed, Rate: 1000},
	}
	if err := core.Validate.Struct(ns); err == nil {
		t.Error("Validate() accepted a password similar to the username")
	}
}

func TestPasswordConfirmMismatch(t *testing.T) {
	cp := ChangePassword{Password: "Str0ng&pwd", PasswordConfirm: "Other&pwd1"}
	if err := cp.Validate(); err == nil {
		t.Error("Validate() accepted mismatched password confirmation")
	}
}

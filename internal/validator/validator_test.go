package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	var nilLogger *zap.Logger
	var nilFunc func()

	tests := []struct {
		name    string
		deps    []any
		wantErr bool
	}{
		{name: "no deps"},
		{name: "all set", deps: []any{zap.NewNop(), "bucket", 3, func() {}}},
		{name: "untyped nil", deps: []any{nil}, wantErr: true},
		{name: "nil pointer", deps: []any{zap.NewNop(), nilLogger}, wantErr: true},
		{name: "nil func", deps: []any{nilFunc}, wantErr: true},
		{name: "empty string", deps: []any{"bucket", ""}, wantErr: true},
		{name: "zero int", deps: []any{0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("component", tt.deps...)
			if tt.wantErr {
				require.ErrorContains(t, err, "component")
				return
			}
			require.NoError(t, err)
		})
	}
}

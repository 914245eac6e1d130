package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateBroadcastPhone(t *testing.T) {
	cases := []struct {
		phone   string
		wantErr bool
	}{
		{phone: "5550001111", wantErr: false},
		{phone: "+15550001111", wantErr: false},
		{phone: "  +15550001111  ", wantErr: false},
		{phone: "123456789012345", wantErr: false},
		{phone: "", wantErr: true},
		{phone: "   ", wantErr: true},
		{phone: "123456789", wantErr: true},
		{phone: "1234567890123456", wantErr: true},
		{phone: "+1 555-000-1111", wantErr: true},
		{phone: "555000111a", wantErr: true},
		{phone: "++15550001111", wantErr: true},
	}

	for _, test := range cases {
		err := ValidateBroadcastPhone(test.phone)
		if test.wantErr {
			require.Error(t, err, "phone %q", test.phone)
		} else {
			require.NoError(t, err, "phone %q", test.phone)
		}
	}
}

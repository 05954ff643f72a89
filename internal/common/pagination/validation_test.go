package pagination_test

import (
	"testing"

	"courier/internal/common/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	config := pagination.DefaultConfig()

	require.NoError(t, pagination.Params{Page: 1, Limit: 20}.Validate(config))
	require.NoError(t, pagination.Params{Page: 500, Limit: 100}.Validate(config))

	assert.Error(t, pagination.Params{Page: 0, Limit: 20}.Validate(config))
	assert.Error(t, pagination.Params{Page: 1, Limit: 0}.Validate(config))
	assert.Error(t, pagination.Params{Page: 1, Limit: 101}.Validate(config))
}

func TestParamsWithDefaults(t *testing.T) {
	config := pagination.DefaultConfig()

	tests := []struct {
		name string
		in   pagination.Params
		want pagination.Params
	}{
		{
			name: "zero values take defaults",
			in:   pagination.Params{},
			want: pagination.Params{Page: 1, Limit: 20},
		},
		{
			name: "valid values pass through",
			in:   pagination.Params{Page: 4, Limit: 50},
			want: pagination.Params{Page: 4, Limit: 50},
		},
		{
			name: "oversized limit is capped",
			in:   pagination.Params{Page: 1, Limit: 5000},
			want: pagination.Params{Page: 1, Limit: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.WithDefaults(config))
		})
	}
}

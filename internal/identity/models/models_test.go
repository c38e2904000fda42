package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "unikyc/pkg/domain-errors"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "alice.eth", want: "alice.eth"},
		{input: "  Alice.ETH ", want: "alice.eth"},
		{input: "sub.alice_1.eth", want: "sub.alice_1.eth"},
		{input: "my-name.eth", want: "my-name.eth"},
		{input: "", wantErr: true},
		{input: "alice", wantErr: true},
		{input: "alice..eth", wantErr: true},
		{input: ".eth", wantErr: true},
		{input: "al ice.eth", wantErr: true},
		{input: "alice.eth/evil", wantErr: true},
		{input: strings.Repeat("a", 252) + ".eth", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeLabel(tt.input)
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "err=%v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDistinctLabels(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: []string{}},
		{name: "case and whitespace collapse", input: []string{"alice.eth", " ALICE.eth "}, want: []string{"alice.eth"}},
		{name: "first appearance order", input: []string{"mallory.eth", "alice.eth", "Mallory.ETH"}, want: []string{"mallory.eth", "alice.eth"}},
		{name: "malformed names dropped", input: []string{"", "  ", "alice", "bad name.eth", "trent.eth"}, want: []string{"trent.eth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DistinctLabels(tt.input))
		})
	}
}

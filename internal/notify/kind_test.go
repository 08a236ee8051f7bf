package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := Data{
		CustomerName: "Sari",
		OrderNumber:  "ORD-20260314-0001",
		Total:        "Rp105.000",
		Code:         "482913",
		ValidMinutes: 5,
	}

	tests := []struct {
		kind Kind
		want []string
	}{
		{KindOrderPlaced, []string{"Sari", "ORD-20260314-0001", "Rp105.000"}},
		{KindConfirmed, []string{"ORD-20260314-0001", "confirmed"}},
		{KindPreparing, []string{"being prepared"}},
		{KindReady, []string{"ready", "Rp105.000"}},
		{KindDelivered, []string{"delivered", "Sari"}},
		{KindCancelled, []string{"cancelled"}},
		{KindVerificationCode, []string{"482913", "5 minutes"}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			body, err := Render(tt.kind, data)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, body, s)
			}
		})
	}
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render(Kind(99), Data{})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestEveryKindHasTemplate(t *testing.T) {
	for k := range kindNames {
		_, ok := templates[k]
		assert.True(t, ok, "missing template for %s", k)
	}
}

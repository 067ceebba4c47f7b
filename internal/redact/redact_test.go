package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"no personal data", "We store customer data in AWS us-east-1.", false},
		{"framework names", "We are pursuing ISO 27001 and SOC 2 in 2025.", false},
		{"email", "Security contact is jane.doe@example.com", true},
		{"phone", "Call the on-call line at 555-123-4567", true},
		{"ssn", "Employee SSN 123-45-6789", true},
		{"credit card", "Test card 4532015112830366", true},
		{"card with spaces", "Card 4532 0151 1283 0366", true},
		{"invalid luhn", "Order 4532015112830367", false},
		{"ip", "VPN gateway at 10.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.text))
		})
	}
}

func TestDetect_OrderedAndNonOverlapping(t *testing.T) {
	text := "Mail ops@example.com or call (555) 123-4567 from 192.168.1.10"

	detections := Detect(text)
	require.Len(t, detections, 3)
	assert.Equal(t, KindEmail, detections[0].Kind)
	assert.Equal(t, KindPhone, detections[1].Kind)
	assert.Equal(t, KindIPAddress, detections[2].Kind)

	for i := 1; i < len(detections); i++ {
		assert.GreaterOrEqual(t, detections[i].Start, detections[i-1].End)
	}
}

func TestRedact(t *testing.T) {
	got := Redact("Owner: jane@acme.io, SSN 123-45-6789, host 10.1.2.3.")
	assert.Equal(t, "Owner: [EMAIL_REDACTED], SSN [SSN_REDACTED], host [IP_REDACTED].", got)

	clean := "Access reviews happen quarterly."
	assert.Equal(t, clean, Redact(clean))
}

func TestValidSSN(t *testing.T) {
	assert.True(t, validSSN("123-45-6789"))
	assert.False(t, validSSN("000-45-6789"))
	assert.False(t, validSSN("666-45-6789"))
	assert.False(t, validSSN("912-45-6789"))
	assert.False(t, validSSN("123-00-6789"))
}

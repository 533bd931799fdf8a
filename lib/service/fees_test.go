package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feeTestService() *EscrowhubService {
	return &EscrowhubService{
		Config: &Config{
			ServiceFeePercent: 10,
			ServiceFeeFloor:   50,
			PayoutFeePercent:  1,
			PayoutFeeFixed:    25,
		},
	}
}

func TestPlatformFee(t *testing.T) {
	svc := feeTestService()

	// 10% of $200
	assert.Equal(t, int64(2000), svc.PlatformFee(20000))
	// the floor kicks in below $5
	assert.Equal(t, int64(50), svc.PlatformFee(400))
	assert.Equal(t, int64(50), svc.PlatformFee(500))
	assert.Equal(t, int64(51), svc.PlatformFee(510))
	// fee never exceeds the gross amount
	assert.Equal(t, int64(30), svc.PlatformFee(30))
}

func TestPayoutFee(t *testing.T) {
	svc := feeTestService()

	// 1% + 25 cents
	assert.Equal(t, int64(125), svc.PayoutFee(10000))
	assert.Equal(t, int64(45), svc.PayoutFee(2000))
	// capped at the payout amount
	assert.Equal(t, int64(10), svc.PayoutFee(10))
}

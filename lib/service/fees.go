package service

// PlatformFee returns the platform's cut of a gross milestone release.
// Fee is a configured percentage with an absolute floor, and never more
// than the gross amount itself.
func (svc *EscrowhubService) PlatformFee(grossAmount int64) int64 {
	fee := grossAmount * svc.Config.ServiceFeePercent / 100
	if fee < svc.Config.ServiceFeeFloor {
		fee = svc.Config.ServiceFeeFloor
	}
	if fee > grossAmount {
		fee = grossAmount
	}
	return fee
}

// PayoutFee is a percentage plus a fixed component, capped at the payout
// amount.
func (svc *EscrowhubService) PayoutFee(amount int64) int64 {
	fee := amount*svc.Config.PayoutFeePercent/100 + svc.Config.PayoutFeeFixed
	if fee > amount {
		fee = amount
	}
	return fee
}

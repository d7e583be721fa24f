package payment

import (
	"net/url"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
)

const (
	vnpParamTxnRef       = "vnp_TxnRef"
	vnpParamResponseCode = "vnp_ResponseCode"

	vnpCodeSuccess = "00"
)

// vnpFailureReasons maps VNPay response codes to user-facing messages. The
// wording is fixed by the gateway contract and must not be rephrased.
var vnpFailureReasons = map[string]string{
	"24": "Payment cancelled by user",
	"51": "Insufficient funds in account",
	"65": "Daily transaction limit exceeded",
	"75": "Bank under maintenance",
	"79": "Too many wrong password attempts",
	"99": "Unknown error",
}

// VNPayReturn is the decoded outcome of a VNPay return redirect.
type VNPayReturn struct {
	TransactionID string
	ResponseCode  string
	Status        enums.PaymentState
	Message       string
}

// ParseVNPayReturn extracts the transaction handle and outcome from the query
// parameters VNPay appends to its return redirect. Code "00" is the only
// success; every other code is a failure with its mapped reason.
func ParseVNPayReturn(query url.Values) (*VNPayReturn, error) {
	txnRef := query.Get(vnpParamTxnRef)
	if txnRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing vnp_TxnRef parameter")
	}
	code := query.Get(vnpParamResponseCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing vnp_ResponseCode parameter")
	}

	result := &VNPayReturn{
		TransactionID: txnRef,
		ResponseCode:  code,
	}
	if code == vnpCodeSuccess {
		result.Status = enums.PaymentStateSuccess
		result.Message = "Payment successful"
		return result, nil
	}

	result.Status = enums.PaymentStateFailed
	if reason, ok := vnpFailureReasons[code]; ok {
		result.Message = reason
	} else {
		result.Message = vnpFailureReasons["99"]
	}
	return result, nil
}

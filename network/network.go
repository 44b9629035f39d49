package network

import (
	"errors"

	"github.com/gocolly/colly/v2"
)

var ErrMaxRetry = errors.New("max retry")

const (
	ctxKeyRetryCnt    = "retryCnt"
	ctxKeyMaxRetryCnt = "maxRetryCnt"
)

// SetMaxRetry records max retry count of requests made with given context.
func SetMaxRetry(ctx *colly.Context, maxRetryCnt int) {
	ctx.Put(ctxKeyMaxRetryCnt, maxRetryCnt)
}

// RetryRequest reads `retryCnt` and `maxRetryCnt` from request context. If
// current retry count is less than max retry count, this function retries given
// request, else a `ErrMaxRetry` will be retruned.
// This function returns retry count after operation, and error happenes during
// operation.
func RetryRequest(req *colly.Request) (int, error) {
	ctx := req.Ctx

	maxRetryCnt, _ := ctx.GetAny(ctxKeyMaxRetryCnt).(int)

	retryCnt, _ := ctx.GetAny(ctxKeyRetryCnt).(int)
	if retryCnt >= maxRetryCnt {
		return retryCnt, ErrMaxRetry
	}

	retryCnt++
	ctx.Put(ctxKeyRetryCnt, retryCnt)

	return retryCnt, req.Retry()
}

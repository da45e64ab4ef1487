package generation

import (
	"fmt"

	"github.com/maauso/mash-api/internal/replicate"
)

// resolve turns the last polled prediction into a Result.
// A list output resolves to its first URL.
func resolve(pred replicate.Prediction, mode Mode) (Result, error) {
	switch pred.Status {
	case replicate.StatusSucceeded:
		urls, err := pred.OutputURLs()
		if err != nil {
			return Result{}, &FailedError{PredictionID: pred.ID, Status: pred.Status, Detail: err.Error()}
		}
		if len(urls) == 0 || urls[0] == "" {
			return Result{}, &FailedError{PredictionID: pred.ID, Status: pred.Status, Detail: "no output returned"}
		}
		return Result{
			OutputURL:    urls[0],
			Type:         mode,
			PredictionID: pred.ID,
		}, nil

	case replicate.StatusFailed, replicate.StatusCanceled:
		return Result{}, &FailedError{
			PredictionID: pred.ID,
			Status:       pred.Status,
			Detail:       pred.ErrorDetail(),
		}

	default:
		return Result{}, fmt.Errorf("%w: prediction %s still %q", ErrTimeoutExhausted, pred.ID, pred.Status)
	}
}

package detection

import (
	"DetectorWeb/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")

	ErrNoImage          = response.NewError(http.StatusBadRequest, "No input image was provided.")
	ErrInvalidImage     = response.NewError(http.StatusBadRequest, "Error processing image, try uploading a different image")
	ErrFileTooLarge     = response.NewError(http.StatusRequestEntityTooLarge, "File too large, try uploading a smaller image")
	ErrPredictionFailed = response.NewError(http.StatusBadGateway, "prediction request failed")
	ErrPredictionStatus = response.NewError(http.StatusBadGateway, "prediction request returned an error")
	ErrPredictionBody   = response.NewError(http.StatusBadGateway, "Prediction response could not be read, check log for details.")
	ErrNoObjects        = response.NewError(http.StatusOK, "No objects detected, try uploading a new image")
	ErrModelUnavailable = response.NewError(http.StatusServiceUnavailable, "model service unavailable")
	ErrResultNotFound   = response.NewError(http.StatusNotFound, "result not found")
	ErrResultsDisabled  = response.NewError(http.StatusServiceUnavailable, "result history is disabled")
)

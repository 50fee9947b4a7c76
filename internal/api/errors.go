package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/agentops/internal/ingest"
	"github.com/openclaw/agentops/internal/store"
)

// errorBody is the JSON shape of every non-validation error.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// validationBody is the JSON shape of a 400 response.
type validationBody struct {
	Errors []ingest.FieldError `json:"errors"`
}

// fail maps err to a status code and writes the response. Validation errors
// become 400, missing rows 404, conflicts 409, oversized bodies 413. Any
// other error is a generic 500 whose cause is shown only in development mode.
func (s *server) fail(c *gin.Context, err error) {
	if failKnown(c, err) {
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, internalError(s.dev, err.Error()))
}

// failIngest is fail for the telemetry handlers, whose 500 carries the
// store's message in every mode.
func (s *server) failIngest(c *gin.Context, err error) {
	if failKnown(c, err) {
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: store.PublicMessage(err)})
}

// failKnown writes the response for the typed errors and reports whether
// it did.
func failKnown(c *gin.Context, err error) bool {
	_ = c.Error(err)

	var ve *ingest.ValidationError
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(http.StatusBadRequest, validationBody{Errors: ve.Errors})
		return true
	}

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
			Error:   "Payload Too Large",
			Message: fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit),
		})
		return true
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: store.PublicMessage(err)})
	case errors.Is(err, store.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: store.PublicMessage(err)})
	default:
		return false
	}
	return true
}

// internalError is the generic 500 body. The cause is shown only in
// development mode.
func internalError(dev bool, cause string) errorBody {
	body := errorBody{Error: "Internal Server Error"}
	if dev {
		body.Message = cause
	}
	return body
}

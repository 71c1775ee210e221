package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const internalErrorMessage = "Erreur interne du serveur"

// response is the JSON envelope of every API answer
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, response{Success: true, Data: data, Message: message})
}

func done(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, response{Success: true, Data: data, Message: message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, response{Error: message})
}

// statusOf maps an error kind onto its HTTP status
func statusOf(t registry.ErrorType) int {
	switch t {
	case registry.ErrorTypeValidation:
		return http.StatusBadRequest
	case registry.ErrorTypeNotFound:
		return http.StatusNotFound
	case registry.ErrorTypeConflict:
		return http.StatusConflict
	case registry.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Internal errors are logged and answered
// with a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	if h.metrics != nil {
		h.metrics.ObserveError(err)
	}

	t := registry.TypeOf(err)
	status := statusOf(t)
	message := internalErrorMessage

	var re *registry.Error
	if errors.As(err, &re) && t != registry.ErrorTypeInternal {
		message = re.Message
	}

	logger := h.logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			log.String(log.FieldMethod, c.Request.Method),
			log.String(log.FieldRoute, c.FullPath()),
			log.Error(err),
		)
	} else {
		logger.Debug("request rejected",
			log.String(log.FieldErrorType, string(t)),
			log.String(log.FieldRoute, c.FullPath()),
			log.String(log.FieldError, err.Error()),
		)
	}

	c.AbortWithStatusJSON(status, response{Error: message})
}

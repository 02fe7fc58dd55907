package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EchoHandler is the custom echo.HTTPErrorHandler.  It renders *Error
// values directly and normalizes framework-level errors (routing 404s,
// 405s, bind failures) into the same envelope so clients never see a
// raw Echo error body.
func EchoHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			apiErr = fromEchoError(httpErr)
		} else {
			log.Printf("unhandled error: %v", err)
			apiErr = ServerError()
		}
	}

	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(apiErr.Code); err != nil {
			log.Printf("error response failed: %v", err)
		}
		return
	}
	if err := c.JSON(apiErr.Code, apiErr); err != nil {
		log.Printf("error response failed: %v", err)
	}
}

func fromEchoError(he *echo.HTTPError) *Error {
	msg := ""
	if s, ok := he.Message.(string); ok {
		msg = s
	}
	// Echo fills Message with the bare status text; drop it so the
	// taxonomy defaults apply instead.
	if msg == http.StatusText(he.Code) {
		msg = ""
	}
	switch he.Code {
	case http.StatusNotFound:
		if msg == "" {
			return NotFound()
		}
		return NotFound(msg)
	case http.StatusMethodNotAllowed:
		if msg == "" {
			return MethodNotAllowed()
		}
		return MethodNotAllowed(msg)
	case http.StatusUnauthorized:
		if msg == "" {
			return Unauthorized()
		}
		return Unauthorized(msg)
	case http.StatusForbidden:
		if msg == "" {
			return Forbidden()
		}
		return Forbidden(msg)
	case http.StatusBadRequest:
		if msg == "" {
			return BadRequest()
		}
		return BadRequest(msg)
	default:
		return ServerError()
	}
}

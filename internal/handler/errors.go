package handler

import (
	"net/http"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// 分類 → HTTPステータス
func statusFor(kind usecase.Kind) int {
	switch kind {
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindValidation, usecase.KindConflict:
		return http.StatusBadRequest
	case usecase.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	e := usecase.AsError(err)
	status := statusFor(e.Kind)

	//500は中身を出さない
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("internal error")
		return c.JSON(status, ErrorResponse{Error: "internal error", Code: "internal"})
	}
	return c.JSON(status, ErrorResponse{Error: e.Message, Code: e.Code})
}

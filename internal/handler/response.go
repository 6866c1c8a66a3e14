package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"shopcore/internal/middleware"
	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 全レスポンス共通の形 {success, message?, code?, data?}
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeOK(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func writeOKMessage(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, Response{Success: true, Message: msg, Data: data})
}

func writeFail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, Response{Success: false, Code: code, Message: msg})
}

func badRequest(c echo.Context, msg string) error {
	return writeFail(c, http.StatusBadRequest, usecase.CodeValidation, msg)
}

// usecaseのエラーをそのままステータスとcodeに写す。それ以外は500で中身は出さない。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return writeFail(c, he.Status, he.Code, he.Message)
	}
	return writeFail(c, http.StatusInternalServerError, usecase.CodeInternal, "internal error")
}

// middleware.AuthJWT が c.Set した値を取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	return id, ok && id > 0
}

func unauthorized(c echo.Context) error {
	return writeFail(c, http.StatusUnauthorized, usecase.CodeUnauthorized, "unauthorized")
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 空なら既定値
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryInt64Ptr(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// HTTPErrorHandler はechoが返すエラー（404/405やBind失敗など）も同じ形にそろえる
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}

	_ = writeFail(c, status, codeForStatus(status), strings.ToLower(http.StatusText(status)))
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return usecase.CodeValidation
	case http.StatusUnauthorized:
		return usecase.CodeUnauthorized
	case http.StatusForbidden:
		return usecase.CodeForbidden
	case http.StatusNotFound:
		return usecase.CodeNotFound
	case http.StatusConflict:
		return usecase.CodeConflict
	}
	return usecase.CodeInternal
}

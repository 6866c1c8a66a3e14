package server

import (
	"net/http"

	"shopcore/internal/config"
	"shopcore/internal/handler"
	"shopcore/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Wallet       *handler.WalletHandler
	Address      *handler.AddressHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminProduct *handler.AdminProductHandler
	AdminCoupon  *handler.AdminCouponHandler
	AdminUser    *handler.AdminUserHandler
}

// /api/v1 配下を登録
func RegisterRoutes(e *echo.Echo, cfg config.Config, sessions middleware.SessionValidator, h Handlers) {
	api := e.Group("/api/v1")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.Response{Success: true, Message: "ok"})
	})

	//ログイン必須：JWT検証 + tv一致 + 失効jtiでない
	session := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.SessionGuard(sessions),
	}

	h.Auth.RegisterRoutes(api, session...)
	h.Product.RegisterRoutes(api)
	h.Cart.RegisterRoutes(api, session...)
	h.Order.RegisterRoutes(api, session...)
	h.Wallet.RegisterRoutes(api, session...)
	h.Address.RegisterRoutes(api, session...)

	// /admin 配下は全部ADMIN限定
	admin := api.Group("/admin", append(session, middleware.AdminRoleGuard())...)
	h.AdminOrder.RegisterRoutes(admin)
	h.AdminProduct.RegisterRoutes(admin)
	h.AdminCoupon.RegisterRoutes(admin)
	h.AdminUser.RegisterRoutes(admin)
}

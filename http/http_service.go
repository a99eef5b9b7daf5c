package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/GideonBature/nodegaze-sub000/api"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/logger"
	"github.com/GideonBature/nodegaze-sub000/service"
)

type authTokenResponse struct {
	Token string            `json:"token"`
	User  *api.UserResponse `json:"user"`
}

type jwtCustomClaims struct {
	UserId    uint `json:"user_id"`
	AccountId uint `json:"account_id"`
	jwt.RegisteredClaims
}

type errorResponse struct {
	Message string `json:"message"`
}

type HttpService struct {
	api *api.API
	svc *service.Service
}

func NewHttpService(svc *service.Service) *HttpService {
	return &HttpService{
		api: api.NewAPI(svc),
		svc: svc,
	}
}

func (httpSvc *HttpService) RegisterSharedRoutes(e *echo.Echo) {
	e.HideBanner = true

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogHost:      true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			logger.HttpLogger.Info().
				Str("uri", values.URI).
				Int("status", values.Status).
				Str("remote_ip", values.RemoteIP).
				Str("user_agent", values.UserAgent).
				Str("host", values.Host).
				Str("request_id", values.RequestID).
				Msg("handled API request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.POST("/api/auth/signup", httpSvc.signupHandler)
	e.POST("/api/auth/login", httpSvc.loginHandler)

	jwtConfig := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwtCustomClaims)
		},
		KeyFunc: func(token *jwt.Token) (interface{}, error) {
			return []byte(httpSvc.svc.Config().JWTSecret), nil
		},
		TokenLookup: "header:Authorization:Bearer ,query:token",
	}

	restricted := e.Group("/api")
	restricted.Use(echojwt.WithConfig(jwtConfig))

	restricted.GET("/nodes", httpSvc.listNodesHandler)
	restricted.POST("/nodes", httpSvc.createNodeHandler)
	restricted.DELETE("/nodes/:id", httpSvc.deleteNodeHandler)
	restricted.GET("/nodes/:id/info", httpSvc.nodeInfoHandler)
	restricted.GET("/nodes/:id/network", httpSvc.nodeNetworkHandler)
	restricted.GET("/nodes/:id/graph/:pubkey", httpSvc.graphNodeInfoHandler)
	restricted.GET("/nodes/:id/channels", httpSvc.listChannelsHandler)
	restricted.GET("/nodes/:id/channels/:chanId", httpSvc.channelInfoHandler)
	restricted.GET("/nodes/:id/payments", httpSvc.listPaymentsHandler)
	restricted.GET("/nodes/:id/payments/:hash", httpSvc.paymentDetailsHandler)
	restricted.GET("/nodes/:id/invoices", httpSvc.listInvoicesHandler)
	restricted.GET("/nodes/:id/invoices/:hash", httpSvc.invoiceDetailsHandler)

	restricted.GET("/events", httpSvc.listEventsHandler)
	restricted.GET("/events/:id", httpSvc.getEventHandler)
	restricted.DELETE("/events/:id", httpSvc.deleteEventHandler)

	restricted.GET("/notifications", httpSvc.listNotificationsHandler)
	restricted.POST("/notifications", httpSvc.createNotificationHandler)
	restricted.PATCH("/notifications/:id", httpSvc.updateNotificationHandler)
	restricted.DELETE("/notifications/:id", httpSvc.deleteNotificationHandler)
}

func (httpSvc *HttpService) signupHandler(c echo.Context) error {
	var req api.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request body"})
	}
	user, err := httpSvc.api.Signup(&req)
	if err != nil {
		return httpError(c, err)
	}
	return httpSvc.tokenResponse(c, user)
}

func (httpSvc *HttpService) loginHandler(c echo.Context) error {
	var req api.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request body"})
	}
	user, err := httpSvc.api.Login(&req)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Message: "invalid username or password"})
	}
	return httpSvc.tokenResponse(c, user)
}

func (httpSvc *HttpService) tokenResponse(c echo.Context, user *api.UserResponse) error {
	claims := &jwtCustomClaims{
		UserId:    user.Id,
		AccountId: user.AccountId,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(httpSvc.svc.Config().JWTSecret))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, authTokenResponse{Token: signed, User: user})
}

func accountId(c echo.Context) uint {
	token := c.Get("user").(*jwt.Token)
	claims := token.Claims.(*jwtCustomClaims)
	return claims.AccountId
}

func userId(c echo.Context) uint {
	token := c.Get("user").(*jwt.Token)
	claims := token.Claims.(*jwtCustomClaims)
	return claims.UserId
}

func pathId(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, lnclient.ValidationError("invalid %s", name)
	}
	return uint(id), nil
}

func (httpSvc *HttpService) listNodesHandler(c echo.Context) error {
	nodes, err := httpSvc.api.ListNodes(accountId(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, nodes)
}

func (httpSvc *HttpService) createNodeHandler(c echo.Context) error {
	var req api.CreateNodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request body"})
	}
	node, err := httpSvc.api.CreateNode(c.Request().Context(), accountId(c), userId(c), &req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, node)
}

func (httpSvc *HttpService) deleteNodeHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	if err := httpSvc.api.DeleteNode(accountId(c), nodeId); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (httpSvc *HttpService) nodeInfoHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	info, err := httpSvc.api.GetNodeDetails(accountId(c), nodeId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (httpSvc *HttpService) nodeNetworkHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	network, err := httpSvc.api.GetNetwork(c.Request().Context(), accountId(c), nodeId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, network)
}

func (httpSvc *HttpService) graphNodeInfoHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	info, err := httpSvc.api.GetGraphNodeInfo(c.Request().Context(), accountId(c), nodeId, c.Param("pubkey"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (httpSvc *HttpService) listChannelsHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	channels, err := httpSvc.api.ListChannels(c.Request().Context(), accountId(c), nodeId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, channels)
}

func (httpSvc *HttpService) channelInfoHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	chanId, err := lnclient.ParseShortChannelID(c.Param("chanId"))
	if err != nil {
		return httpError(c, err)
	}
	details, err := httpSvc.api.GetChannelInfo(c.Request().Context(), accountId(c), nodeId, chanId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func (httpSvc *HttpService) listPaymentsHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	payments, err := httpSvc.api.ListPayments(c.Request().Context(), accountId(c), nodeId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (httpSvc *HttpService) paymentDetailsHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	details, err := httpSvc.api.GetPaymentDetails(c.Request().Context(), accountId(c), nodeId, c.Param("hash"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func (httpSvc *HttpService) listInvoicesHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	invoices, err := httpSvc.api.ListInvoices(c.Request().Context(), accountId(c), nodeId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, invoices)
}

func (httpSvc *HttpService) invoiceDetailsHandler(c echo.Context) error {
	nodeId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	invoice, err := httpSvc.api.GetInvoiceDetails(c.Request().Context(), accountId(c), nodeId, c.Param("hash"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

func (httpSvc *HttpService) listEventsHandler(c echo.Context) error {
	req := api.ListEventsRequest{
		EventType: c.QueryParam("event_type"),
		Severity:  c.QueryParam("severity"),
	}
	if nodeIdParam := c.QueryParam("node_id"); nodeIdParam != "" {
		nodeId, err := strconv.ParseUint(nodeIdParam, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid node_id"})
		}
		id := uint(nodeId)
		req.NodeId = &id
	}
	if fromParam := c.QueryParam("from"); fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid from timestamp"})
		}
		req.From = &from
	}
	if toParam := c.QueryParam("to"); toParam != "" {
		to, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid to timestamp"})
		}
		req.To = &to
	}
	req.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	req.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	events, err := httpSvc.api.ListEvents(accountId(c), &req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (httpSvc *HttpService) getEventHandler(c echo.Context) error {
	eventId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	event, err := httpSvc.api.GetEvent(accountId(c), eventId)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, event)
}

func (httpSvc *HttpService) deleteEventHandler(c echo.Context) error {
	eventId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	if err := httpSvc.api.DeleteEvent(accountId(c), eventId); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (httpSvc *HttpService) listNotificationsHandler(c echo.Context) error {
	notifications, err := httpSvc.api.ListNotifications(accountId(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (httpSvc *HttpService) createNotificationHandler(c echo.Context) error {
	var req api.CreateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request body"})
	}
	notification, err := httpSvc.api.CreateNotification(c.Request().Context(), accountId(c), &req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, notification)
}

func (httpSvc *HttpService) updateNotificationHandler(c echo.Context) error {
	notificationId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	var req api.UpdateNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid request body"})
	}
	notification, err := httpSvc.api.UpdateNotification(c.Request().Context(), accountId(c), notificationId, &req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, notification)
}

func (httpSvc *HttpService) deleteNotificationHandler(c echo.Context) error {
	notificationId, err := pathId(c, "id")
	if err != nil {
		return httpError(c, err)
	}
	if err := httpSvc.api.DeleteNotification(accountId(c), notificationId); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps lightning error kinds onto HTTP status codes.
func httpError(c echo.Context, err error) error {
	var lnErr *lnclient.Error
	if errors.As(err, &lnErr) {
		switch lnErr.Kind {
		case lnclient.ErrKindValidation, lnclient.ErrKindParse:
			return c.JSON(http.StatusBadRequest, errorResponse{Message: lnErr.Message})
		case lnclient.ErrKindNotFound:
			return c.JSON(http.StatusNotFound, errorResponse{Message: lnErr.Message})
		case lnclient.ErrKindConnection:
			return c.JSON(http.StatusBadGateway, errorResponse{Message: lnErr.Message})
		}
	}
	logger.Logger.Error().Err(err).Msg("Request failed")
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal error"})
}

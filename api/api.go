package api

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/db/queries"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/logger"
	"github.com/GideonBature/nodegaze-sub000/notifications"
	"github.com/GideonBature/nodegaze-sub000/service"
)

type API struct {
	svc *service.Service
}

func NewAPI(svc *service.Service) *API {
	return &API{svc: svc}
}

func (api *API) Signup(req *SignupRequest) (*UserResponse, error) {
	if req.AccountName == "" || req.Username == "" || req.Password == "" {
		return nil, lnclient.ValidationError("account name, username and password are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := db.Account{Name: req.AccountName}
	if err := queries.CreateAccount(api.svc.DB(), &account); err != nil {
		return nil, err
	}

	user := db.User{
		AccountId:    account.ID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Role:         constants.USER_ROLE_ADMIN,
	}
	if err := queries.CreateUser(api.svc.DB(), &user); err != nil {
		return nil, err
	}

	return userResponse(&user), nil
}

// Login verifies credentials and returns the user; the HTTP layer mints
// the token.
func (api *API) Login(req *LoginRequest) (*UserResponse, error) {
	user, err := queries.GetUserByUsername(api.svc.DB(), req.Username)
	if err != nil {
		return nil, lnclient.ValidationError("invalid username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, lnclient.ValidationError("invalid username or password")
	}
	return userResponse(user), nil
}

func userResponse(user *db.User) *UserResponse {
	return &UserResponse{
		Id:        user.ID,
		AccountId: user.AccountId,
		Username:  user.Username,
		Role:      user.Role,
	}
}

// CreateNode stores the connection and dials it immediately so bad
// credentials are rejected at creation time.
func (api *API) CreateNode(ctx context.Context, accountId uint, userId uint, req *CreateNodeRequest) (*NodeResponse, error) {
	if req.Pubkey == "" || req.Address == "" {
		return nil, lnclient.ValidationError("pubkey and address are required")
	}
	if err := lnclient.ValidatePubkey(req.Pubkey); err != nil {
		return nil, err
	}

	node := db.Node{
		AccountId:  accountId,
		UserId:     userId,
		Alias:      req.Alias,
		Pubkey:     req.Pubkey,
		NodeType:   req.NodeType,
		Address:    req.Address,
		Macaroon:   req.Macaroon,
		TlsCert:    req.TlsCert,
		CaCert:     req.CaCert,
		ClientCert: req.ClientCert,
		ClientKey:  req.ClientKey,
		IsActive:   true,
	}
	if err := queries.CreateNode(api.svc.DB(), &node); err != nil {
		return nil, err
	}

	if err := api.svc.ConnectNode(ctx, node); err != nil {
		logger.Logger.Error().Err(err).Str("pubkey", node.Pubkey).Msg("Failed to connect new node")
		if deleteErr := queries.DeleteNode(api.svc.DB(), accountId, node.ID); deleteErr != nil {
			logger.Logger.Error().Err(deleteErr).Msg("Failed to roll back node row")
		}
		return nil, err
	}

	return api.nodeResponse(&node), nil
}

func (api *API) ListNodes(accountId uint) ([]NodeResponse, error) {
	nodes, err := queries.ListNodes(api.svc.DB(), accountId)
	if err != nil {
		return nil, err
	}
	responses := make([]NodeResponse, 0, len(nodes))
	for i := range nodes {
		responses = append(responses, *api.nodeResponse(&nodes[i]))
	}
	return responses, nil
}

func (api *API) DeleteNode(accountId uint, nodeId uint) error {
	if _, err := queries.GetNode(api.svc.DB(), accountId, nodeId); err != nil {
		return lnclient.NotFoundError("node %d not found", nodeId)
	}
	api.svc.DisconnectNode(nodeId)
	return queries.DeleteNode(api.svc.DB(), accountId, nodeId)
}

func (api *API) nodeResponse(node *db.Node) *NodeResponse {
	_, connected := api.svc.GetClient(node.ID)
	return &NodeResponse{
		Id:        node.ID,
		Alias:     node.Alias,
		Pubkey:    node.Pubkey,
		NodeType:  node.NodeType,
		Address:   node.Address,
		IsActive:  node.IsActive,
		Connected: connected,
	}
}

// client resolves the live connection for an account's node.
func (api *API) client(accountId uint, nodeId uint) (lnclient.LNClient, error) {
	if _, err := queries.GetNode(api.svc.DB(), accountId, nodeId); err != nil {
		return nil, lnclient.NotFoundError("node %d not found", nodeId)
	}
	client, ok := api.svc.GetClient(nodeId)
	if !ok {
		return nil, lnclient.ConnectionError(nil, "node %d is not connected", nodeId)
	}
	return client, nil
}

func (api *API) GetNodeDetails(accountId uint, nodeId uint) (*lnclient.NodeInfo, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.GetInfo(), nil
}

func (api *API) GetNetwork(ctx context.Context, accountId uint, nodeId uint) (*NetworkResponse, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	network, err := client.GetNetwork(ctx)
	if err != nil {
		return nil, err
	}
	return &NetworkResponse{Network: network}, nil
}

func (api *API) GetGraphNodeInfo(ctx context.Context, accountId uint, nodeId uint, pubkey string) (*lnclient.NodeInfo, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.GetNodeInfo(ctx, pubkey)
}

func (api *API) ListChannels(ctx context.Context, accountId uint, nodeId uint) ([]lnclient.ChannelSummary, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.ListChannels(ctx)
}

func (api *API) GetChannelInfo(ctx context.Context, accountId uint, nodeId uint, chanId lnclient.ShortChannelID) (*lnclient.ChannelDetails, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.GetChannelInfo(ctx, chanId)
}

// ListPayments returns the node's payments with USD amounts filled in
// from the price cache.
func (api *API) ListPayments(ctx context.Context, accountId uint, nodeId uint) ([]lnclient.PaymentSummary, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	payments, err := client.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		payments[i].AmountUsd = api.svc.Prices().SatsToUsd(ctx, payments[i].AmountSat)
	}
	return payments, nil
}

func (api *API) GetPaymentDetails(ctx context.Context, accountId uint, nodeId uint, paymentHash string) (*lnclient.PaymentDetails, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	details, err := client.GetPaymentDetails(ctx, paymentHash)
	if err != nil {
		return nil, err
	}
	details.AmountUsd = api.svc.Prices().SatsToUsd(ctx, details.AmountSat)
	return details, nil
}

func (api *API) ListInvoices(ctx context.Context, accountId uint, nodeId uint) ([]lnclient.CustomInvoice, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.ListInvoices(ctx)
}

func (api *API) GetInvoiceDetails(ctx context.Context, accountId uint, nodeId uint, paymentHash string) (*lnclient.CustomInvoice, error) {
	client, err := api.client(accountId, nodeId)
	if err != nil {
		return nil, err
	}
	return client.GetInvoiceDetails(ctx, paymentHash)
}

func (api *API) ListEvents(accountId uint, req *ListEventsRequest) ([]EventResponse, error) {
	events, err := queries.ListEvents(api.svc.DB(), queries.EventFilter{
		AccountId: accountId,
		EventType: req.EventType,
		Severity:  req.Severity,
		NodeId:    req.NodeId,
		From:      req.From,
		To:        req.To,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, *eventResponse(&events[i]))
	}
	return responses, nil
}

func (api *API) GetEvent(accountId uint, eventId uint) (*EventResponse, error) {
	event, err := queries.GetEvent(api.svc.DB(), accountId, eventId)
	if err != nil {
		return nil, lnclient.NotFoundError("event %d not found", eventId)
	}
	return eventResponse(event), nil
}

func (api *API) DeleteEvent(accountId uint, eventId uint) error {
	if _, err := queries.GetEvent(api.svc.DB(), accountId, eventId); err != nil {
		return lnclient.NotFoundError("event %d not found", eventId)
	}
	return queries.DeleteEvent(api.svc.DB(), accountId, eventId)
}

func eventResponse(event *db.Event) *EventResponse {
	return &EventResponse{
		Id:          event.ID,
		ReferenceId: event.ReferenceId,
		UserId:      event.UserId,
		NodeId:      event.NodeId,
		EventType:   event.EventType,
		Severity:    event.Severity,
		Title:       event.Title,
		Description: event.Description,
		NodePubkey:  event.NodePubkey,
		NodeAlias:   event.NodeAlias,
		Data:        event.Data,
		Timestamp:   event.Timestamp,
	}
}

// CreateNotification validates the endpoint before saving it: Discord
// URLs structurally, webhooks with a ping.
func (api *API) CreateNotification(ctx context.Context, accountId uint, req *CreateNotificationRequest) (*NotificationResponse, error) {
	if req.Name == "" || req.Url == "" {
		return nil, lnclient.ValidationError("name and url are required")
	}

	notification := db.Notification{
		AccountId:        accountId,
		Name:             req.Name,
		NotificationType: req.NotificationType,
		Url:              req.Url,
		IsActive:         true,
	}
	if err := notifications.ValidateEndpoint(ctx, notification); err != nil {
		return nil, err
	}
	if err := queries.CreateNotification(api.svc.DB(), &notification); err != nil {
		return nil, err
	}
	return notificationResponse(&notification), nil
}

func (api *API) ListNotifications(accountId uint) ([]NotificationResponse, error) {
	rows, err := queries.ListNotifications(api.svc.DB(), accountId)
	if err != nil {
		return nil, err
	}
	responses := make([]NotificationResponse, 0, len(rows))
	for i := range rows {
		responses = append(responses, *notificationResponse(&rows[i]))
	}
	return responses, nil
}

func (api *API) UpdateNotification(ctx context.Context, accountId uint, notificationId uint, req *UpdateNotificationRequest) (*NotificationResponse, error) {
	notification, err := queries.GetNotification(api.svc.DB(), accountId, notificationId)
	if err != nil {
		return nil, lnclient.NotFoundError("notification %d not found", notificationId)
	}

	if req.Name != nil {
		notification.Name = *req.Name
	}
	if req.Url != nil {
		notification.Url = *req.Url
		if err := notifications.ValidateEndpoint(ctx, *notification); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		notification.IsActive = *req.IsActive
	}

	if err := queries.UpdateNotification(api.svc.DB(), notification); err != nil {
		return nil, err
	}
	return notificationResponse(notification), nil
}

func (api *API) DeleteNotification(accountId uint, notificationId uint) error {
	if _, err := queries.GetNotification(api.svc.DB(), accountId, notificationId); err != nil {
		return lnclient.NotFoundError("notification %d not found", notificationId)
	}
	return queries.DeleteNotification(api.svc.DB(), accountId, notificationId)
}

func notificationResponse(notification *db.Notification) *NotificationResponse {
	return &NotificationResponse{
		Id:               notification.ID,
		Name:             notification.Name,
		NotificationType: notification.NotificationType,
		Url:              notification.Url,
		IsActive:         notification.IsActive,
		CreatedAt:        notification.CreatedAt,
	}
}

package service

import (
	"context"
	"encoding/hex"
	"os"

	"github.com/GideonBature/nodegaze-sub000/config"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/db/queries"
	"github.com/GideonBature/nodegaze-sub000/events"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/lnclient/cln"
	"github.com/GideonBature/nodegaze-sub000/lnclient/lnd"
	"github.com/GideonBature/nodegaze-sub000/logger"
)

// StartNodes connects every active node stored in the database. A node
// that fails to connect is logged and skipped so one bad credential set
// does not keep the rest offline.
func (svc *Service) StartNodes(ctx context.Context) {
	nodes, err := queries.ListActiveNodes(svc.db)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to load nodes")
		return
	}

	for _, node := range nodes {
		if err := svc.ConnectNode(ctx, node); err != nil {
			logger.Logger.Error().Err(err).
				Uint("node_id", node.ID).
				Str("pubkey", node.Pubkey).
				Msg("Failed to connect node")
		}
	}
}

// StartEnvNode connects the node configured through environment variables,
// if any, storing it under a default account. This lets a single-node
// deployment run without touching the API first.
func (svc *Service) StartEnvNode(ctx context.Context) error {
	cfg := svc.cfg
	if cfg.LNBackendType == "" {
		return nil
	}
	if cfg.NodeId == "" {
		return lnclient.ValidationError("NODE_ID is required when LN_BACKEND_TYPE is set")
	}

	var account db.Account
	if err := svc.db.FirstOrCreate(&account, db.Account{Name: "default"}).Error; err != nil {
		return err
	}

	node := db.Node{
		AccountId: account.ID,
		Pubkey:    cfg.NodeId,
		NodeType:  cfg.LNBackendType,
	}

	switch cfg.LNBackendType {
	case config.LNDBackendType:
		cert, err := readFileHex(cfg.LNDCertFile)
		if err != nil {
			return err
		}
		macaroon, err := readFileHex(cfg.LNDMacaroonFile)
		if err != nil {
			return err
		}
		node.Address = cfg.LNDAddress
		node.TlsCert = cert
		node.Macaroon = macaroon
	case config.CLNBackendType:
		caCert, err := readFile(cfg.CLNCaCertFile)
		if err != nil {
			return err
		}
		clientCert, err := readFile(cfg.CLNClientCertFile)
		if err != nil {
			return err
		}
		clientKey, err := readFile(cfg.CLNClientKeyFile)
		if err != nil {
			return err
		}
		node.Address = cfg.CLNAddress
		node.CaCert = caCert
		node.ClientCert = clientCert
		node.ClientKey = clientKey
	default:
		return lnclient.ValidationError("unknown LN_BACKEND_TYPE %q", cfg.LNBackendType)
	}

	var existing db.Node
	err := svc.db.Where("account_id = ? AND pubkey = ?", account.ID, node.Pubkey).First(&existing).Error
	if err == nil {
		node.ID = existing.ID
		node.IsActive = existing.IsActive
		if err := svc.db.Model(&existing).Updates(&node).Error; err != nil {
			return err
		}
	} else {
		node.IsActive = true
		if err := queries.CreateNode(svc.db, &node); err != nil {
			return err
		}
	}

	return svc.ConnectNode(ctx, node)
}

func readFile(path string) (string, error) {
	if path == "" {
		return "", lnclient.ValidationError("missing credential file path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func readFileHex(path string) (string, error) {
	raw, err := readFile(path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString([]byte(raw)), nil
}

// ConnectNode dials the node with the backend matching its stored type
// and starts collecting its events.
func (svc *Service) ConnectNode(ctx context.Context, node db.Node) error {
	svc.clientsMtx.RLock()
	_, alreadyConnected := svc.clients[node.ID]
	svc.clientsMtx.RUnlock()
	if alreadyConnected {
		return nil
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	var client lnclient.LNClient
	var err error
	switch node.NodeType {
	case config.LNDBackendType:
		client, err = lnd.NewLNDService(nodeCtx, lnclient.LndConnection{
			Id:          lnclient.NewNodeIdFromPubkey(node.Pubkey),
			Address:     node.Address,
			CertHex:     node.TlsCert,
			MacaroonHex: node.Macaroon,
		})
	case config.CLNBackendType:
		client, err = cln.NewCLNService(nodeCtx, lnclient.ClnConnection{
			Id:            lnclient.NewNodeIdFromPubkey(node.Pubkey),
			Address:       node.Address,
			CaCertPem:     node.CaCert,
			ClientCertPem: node.ClientCert,
			ClientKeyPem:  node.ClientKey,
		})
	default:
		cancel()
		return lnclient.ValidationError("unknown node type %q", node.NodeType)
	}
	if err != nil {
		cancel()
		return err
	}

	meta := events.NodeMeta{
		AccountId: node.AccountId,
		UserId:    node.UserId,
		NodeId:    node.ID,
		Pubkey:    client.GetInfo().Pubkey,
		Alias:     client.GetInfo().Alias,
	}
	if err := svc.collector.Collect(nodeCtx, meta, client); err != nil {
		cancel()
		client.Shutdown()
		return err
	}

	svc.clientsMtx.Lock()
	svc.clients[node.ID] = &nodeConnection{client: client, cancel: cancel}
	svc.clientsMtx.Unlock()

	return nil
}

// DisconnectNode stops collection for a node and closes its connection.
func (svc *Service) DisconnectNode(nodeId uint) {
	svc.clientsMtx.Lock()
	conn, ok := svc.clients[nodeId]
	if ok {
		delete(svc.clients, nodeId)
	}
	svc.clientsMtx.Unlock()
	if !ok {
		return
	}

	conn.cancel()
	if err := conn.client.Shutdown(); err != nil {
		logger.Logger.Error().Err(err).Uint("node_id", nodeId).Msg("Failed to shut down node client")
	}
}

// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/node"
)

// Client implements node.ValidatorNode over a gRPC connection, so the
// Quorum Communicator and the Validator Updater can talk to a remote
// validator exactly the way they talk to the in-process Local Node.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection. Dialing (retry policy,
// TLS, keepalive) is left to the caller, matching how the teacher's own
// transport packages separate connection setup from RPC plumbing.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, method)
	return c.conn.Invoke(ctx, fullMethod, req, resp, grpc.CallContentSubtype(codecName))
}

func (c *Client) HandleChainInfoQuery(ctx context.Context, query node.ChainInfoQuery) (node.ChainInfoResponse, error) {
	var resp node.ChainInfoResponse
	err := c.invoke(ctx, "HandleChainInfoQuery", &query, &resp)
	return resp, err
}

func (c *Client) HandleBlockProposal(ctx context.Context, proposal block.BlockProposal) (*block.Vote, error) {
	var resp block.Vote
	if err := c.invoke(ctx, "HandleBlockProposal", &proposal, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) HandleCertificate(ctx context.Context, cert block.Certificate) (*block.Vote, error) {
	var resp block.Vote
	if err := c.invoke(ctx, "HandleCertificate", &cert, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) HandleCrossChainRequest(ctx context.Context, destination chainid.ID, messages []block.MessageGroup) error {
	req := crossChainRequest{Destination: destination, Messages: messages}
	var resp struct{}
	return c.invoke(ctx, "HandleCrossChainRequest", &req, &resp)
}

var _ node.ValidatorNode = (*Client)(nil)

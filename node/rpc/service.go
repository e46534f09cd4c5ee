// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/node"
)

const serviceName = "chainclient.Validator"

// crossChainRequest is the gob wire shape of HandleCrossChainRequest's
// arguments, which ValidatorNode takes as two separate parameters.
type crossChainRequest struct {
	Destination chainid.ID
	Messages    []block.MessageGroup
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*node.ValidatorNode)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HandleChainInfoQuery", Handler: handleChainInfoQuery},
		{MethodName: "HandleBlockProposal", Handler: handleBlockProposal},
		{MethodName: "HandleCertificate", Handler: handleCertificate},
		{MethodName: "HandleCrossChainRequest", Handler: handleCrossChainRequest},
	},
}

func handleChainInfoQuery(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req node.ChainInfoQuery
	if err := dec(&req); err != nil {
		return nil, err
	}
	impl := srv.(node.ValidatorNode)
	if interceptor == nil {
		return impl.HandleChainInfoQuery(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HandleChainInfoQuery"}
	handler := func(ctx context.Context, req any) (any, error) {
		return impl.HandleChainInfoQuery(ctx, *req.(*node.ChainInfoQuery))
	}
	return interceptor(ctx, &req, info, handler)
}

func handleBlockProposal(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req block.BlockProposal
	if err := dec(&req); err != nil {
		return nil, err
	}
	impl := srv.(node.ValidatorNode)
	if interceptor == nil {
		return impl.HandleBlockProposal(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HandleBlockProposal"}
	handler := func(ctx context.Context, req any) (any, error) {
		return impl.HandleBlockProposal(ctx, *req.(*block.BlockProposal))
	}
	return interceptor(ctx, &req, info, handler)
}

func handleCertificate(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req block.Certificate
	if err := dec(&req); err != nil {
		return nil, err
	}
	impl := srv.(node.ValidatorNode)
	if interceptor == nil {
		return impl.HandleCertificate(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HandleCertificate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return impl.HandleCertificate(ctx, *req.(*block.Certificate))
	}
	return interceptor(ctx, &req, info, handler)
}

func handleCrossChainRequest(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req crossChainRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	impl := srv.(node.ValidatorNode)
	run := func(ctx context.Context, req any) (any, error) {
		r := req.(*crossChainRequest)
		return nil, impl.HandleCrossChainRequest(ctx, r.Destination, r.Messages)
	}
	if interceptor == nil {
		return run(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HandleCrossChainRequest"}
	return interceptor(ctx, &req, info, run)
}

// RegisterValidatorServer registers impl against s, wiring the gob codec
// subtype every call on this connection must request.
func RegisterValidatorServer(s *grpc.Server, impl node.ValidatorNode) {
	s.RegisterService(&serviceDesc, impl)
}

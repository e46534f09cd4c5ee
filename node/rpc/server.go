// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"net"

	"google.golang.org/grpc"

	"github.com/luxfi/chainclient/node"
)

// Serve starts a gRPC server exposing impl as a ValidatorNode on lis,
// blocking until the server stops.
func Serve(lis net.Listener, impl node.ValidatorNode) error {
	s := grpc.NewServer()
	RegisterValidatorServer(s, impl)
	return s.Serve(lis)
}

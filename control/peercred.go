// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials identifies the process on the other end of a Unix
// socket connection.
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

// peerCredentials reads SO_PEERCRED from conn.
func peerCredentials(conn net.Conn) (PeerCredentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return PeerCredentials{}, errors.New("control: not a unix connection")
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return PeerCredentials{}, err
	}

	var credentials *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return PeerCredentials{}, err
	}
	if sockoptErr != nil {
		return PeerCredentials{}, sockoptErr
	}
	return PeerCredentials{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, nil
}

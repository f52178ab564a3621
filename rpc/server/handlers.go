package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
)

// MirrorHandler echoes the text of a mirror message back to its sender
func MirrorHandler(srv *GameServer, id uint32, msg *common.Message) error {
	return srv.SendTo(id, *common.NewMirrorMessage(msg.Text))
}

// SyncHandler applies a field update sent by a client and relays it to every
// other connection
func SyncHandler(srv *GameServer, id uint32, msg *common.Message) error {
	if err := srv.state.Apply(msg); err != nil {
		return fmt.Errorf("failed to apply sync from connection %d: %w", id, err)
	}

	var errs []error
	for _, other := range srv.transport.Connections() {
		if other == id {
			continue
		}
		if err := srv.transport.SendTo(other, *msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

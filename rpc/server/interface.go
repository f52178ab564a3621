package server

import (
	"github.com/ValentinKolb/dNet/rpc/common"
)

// HandlerFunc handles one message received on connection id.
// Returned errors are logged, they never close the connection.
type HandlerFunc func(srv *GameServer, id uint32, msg *common.Message) error

package serializer

import "github.com/ValentinKolb/dNet/rpc/common"

// IRPCSerializer turns a Message into the opaque payload carried by the framing
// layer and back. Implementations must be deterministic and round-trip safe.
type IRPCSerializer interface {
	// Serialize encodes a message
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, overwriting every field of msg
	Deserialize(b []byte, msg *common.Message) error
}

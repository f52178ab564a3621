package serializer

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
)

// NewJSONSerializer creates a serializer using json. Message and transport codes are
// written by name, uuids as strings and byte payloads base64 encoded.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: failed to encode %s message: %w", msg.MsgType, err)
	}
	return data, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitted fields must not keep values of a previous message
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json: failed to decode message: %w", err)
	}
	return nil
}

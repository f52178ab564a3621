package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/google/uuid"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasCode        byte = 1 << 0
	hasText        byte = 1 << 1
	hasEntities    byte = 1 << 2
	hasComponents  byte = 1 << 3
	hasComponentID byte = 1 << 4
	hasFieldName   byte = 1 << 5
	hasValue       byte = 1 << 6
)

const uuidSize = 16

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Code
	if msg.Code != common.TransportUnknown {
		flags |= hasCode
		result[pos] = byte(msg.Code)
		pos += 1
	}

	// Handle Text
	if msg.Text != "" {
		flags |= hasText
		pos = putBytes(result, pos, []byte(msg.Text))
	}

	// Handle Entities
	if len(msg.Entities) > 0 {
		flags |= hasEntities
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Entities)))
		pos += 4

		for _, e := range msg.Entities {
			copy(result[pos:pos+uuidSize], e.ID[:])
			pos += uuidSize
			pos = putBytes(result, pos, e.Data)
		}
	}

	// Handle Components
	if len(msg.Components) > 0 {
		flags |= hasComponents
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Components)))
		pos += 4

		for _, c := range msg.Components {
			copy(result[pos:pos+uuidSize], c.ID[:])
			pos += uuidSize
			copy(result[pos:pos+uuidSize], c.EntityID[:])
			pos += uuidSize
			pos = putBytes(result, pos, c.Data)
		}
	}

	// Handle ComponentID
	if msg.ComponentID != uuid.Nil {
		flags |= hasComponentID
		copy(result[pos:pos+uuidSize], msg.ComponentID[:])
		pos += uuidSize
	}

	// Handle FieldName
	if msg.FieldName != "" {
		flags |= hasFieldName
		pos = putBytes(result, pos, []byte(msg.FieldName))
	}

	// Handle Value
	if msg.Value != nil {
		flags |= hasValue
		pos = putBytes(result, pos, msg.Value)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	var err error

	// Read Code if present
	if flags&hasCode != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for transport code")
		}
		msg.Code = common.TransportCode(data[pos])
		pos += 1
	} else {
		msg.Code = common.TransportUnknown
	}

	// Read Text if present
	if flags&hasText != 0 {
		var text []byte
		if text, pos, err = readBytes(data, pos, "text"); err != nil {
			return err
		}
		msg.Text = string(text)
	} else {
		msg.Text = ""
	}

	// Read Entities if present
	if flags&hasEntities != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for entity count")
		}
		count := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		// every entity needs at least its id and a length prefix
		if count > (len(data)-pos)/(uuidSize+4) {
			return fmt.Errorf("data too short for %d entities", count)
		}

		msg.Entities = make([]common.Entity, count)
		for i := range msg.Entities {
			if pos+uuidSize > len(data) {
				return fmt.Errorf("data too short for entity id")
			}
			copy(msg.Entities[i].ID[:], data[pos:pos+uuidSize])
			pos += uuidSize
			if msg.Entities[i].Data, pos, err = readBytes(data, pos, "entity data"); err != nil {
				return err
			}
		}
	} else {
		msg.Entities = nil
	}

	// Read Components if present
	if flags&hasComponents != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for component count")
		}
		count := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if count > (len(data)-pos)/(2*uuidSize+4) {
			return fmt.Errorf("data too short for %d components", count)
		}

		msg.Components = make([]common.Component, count)
		for i := range msg.Components {
			if pos+2*uuidSize > len(data) {
				return fmt.Errorf("data too short for component ids")
			}
			copy(msg.Components[i].ID[:], data[pos:pos+uuidSize])
			pos += uuidSize
			copy(msg.Components[i].EntityID[:], data[pos:pos+uuidSize])
			pos += uuidSize
			if msg.Components[i].Data, pos, err = readBytes(data, pos, "component data"); err != nil {
				return err
			}
		}
	} else {
		msg.Components = nil
	}

	// Read ComponentID if present
	if flags&hasComponentID != 0 {
		if pos+uuidSize > len(data) {
			return fmt.Errorf("data too short for component id")
		}
		copy(msg.ComponentID[:], data[pos:pos+uuidSize])
		pos += uuidSize
	} else {
		msg.ComponentID = uuid.Nil
	}

	// Read FieldName if present
	if flags&hasFieldName != 0 {
		var name []byte
		if name, pos, err = readBytes(data, pos, "field name"); err != nil {
			return err
		}
		msg.FieldName = string(name)
	} else {
		msg.FieldName = ""
	}

	// Read Value if present - create an empty slice (not nil) if length is 0
	if flags&hasValue != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for value length")
		}
		valueLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if pos+valueLen > len(data) {
			return fmt.Errorf("data too short for value data")
		}

		// Allocate only if needed
		if msg.Value == nil || cap(msg.Value) < valueLen {
			msg.Value = make([]byte, valueLen)
		} else {
			msg.Value = msg.Value[:valueLen]
		}
		copy(msg.Value, data[pos:pos+valueLen])
	} else {
		msg.Value = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Code != common.TransportUnknown {
		size += 1
	}
	if msg.Text != "" {
		size += 4 + len(msg.Text) // 4 bytes for length + text
	}
	if len(msg.Entities) > 0 {
		size += 4 // entity count
		for _, e := range msg.Entities {
			size += uuidSize + 4 + len(e.Data)
		}
	}
	if len(msg.Components) > 0 {
		size += 4 // component count
		for _, c := range msg.Components {
			size += 2*uuidSize + 4 + len(c.Data)
		}
	}
	if msg.ComponentID != uuid.Nil {
		size += uuidSize
	}
	if msg.FieldName != "" {
		size += 4 + len(msg.FieldName)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}

	return size
}

// putBytes writes a length prefixed byte slice at pos and returns the new position
func putBytes(dst []byte, pos int, p []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(p)))
	pos += 4
	copy(dst[pos:pos+len(p)], p)
	return pos + len(p)
}

// readBytes reads a length prefixed byte slice at pos. Empty slices are returned as nil.
func readBytes(data []byte, pos int, field string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if pos+n > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s", field)
	}
	if n == 0 {
		return nil, pos, nil
	}

	out := make([]byte, n)
	copy(out, data[pos:pos+n])
	return out, pos + n, nil
}

package state

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"slices"
	"sync"
)

var Logger = logger.GetLogger("state")

var (
	ErrDuplicateID        = errors.New("state: id already registered")
	ErrUnknownEntity      = errors.New("state: unknown entity")
	ErrUnknownComponent   = errors.New("state: unknown component")
	ErrUnsupportedMessage = errors.New("state: unsupported message type")
	ErrEmptyFieldName     = errors.New("state: empty field name")
)

// fieldKey addresses a single synchronized field of a component
type fieldKey struct {
	component uuid.UUID
	name      string
}

// NetworkState is the registry of networked entities and their components.
// Reads are lock free, writes that touch more than one map are serialized.
type NetworkState struct {
	mu         sync.Mutex // serializes writes
	entities   *xsync.MapOf[uuid.UUID, common.Entity]
	components *xsync.MapOf[uuid.UUID, common.Component]
	fields     *xsync.MapOf[fieldKey, []byte]
}

// NewNetworkState creates an empty registry
func NewNetworkState() *NetworkState {
	return &NetworkState{
		entities:   xsync.NewMapOf[uuid.UUID, common.Entity](),
		components: xsync.NewMapOf[uuid.UUID, common.Component](),
		fields:     xsync.NewMapOf[fieldKey, []byte](),
	}
}

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

// AddEntity registers a new entity under a freshly generated id
func (s *NetworkState) AddEntity(data []byte) (common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := common.Entity{ID: uuid.New(), Data: bytes.Clone(data)}
	if _, loaded := s.entities.LoadOrStore(e.ID, e); loaded {
		return common.Entity{}, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	return e, nil
}

// RemoveEntity removes an entity together with its components.
// It returns false if the entity does not exist.
func (s *NetworkState) RemoveEntity(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities.LoadAndDelete(id); !ok {
		return false
	}
	s.components.Range(func(cid uuid.UUID, c common.Component) bool {
		if c.EntityID == id {
			s.removeComponent(cid)
		}
		return true
	})
	return true
}

// Entity returns the entity with the given id
func (s *NetworkState) Entity(id uuid.UUID) (common.Entity, bool) {
	return s.entities.Load(id)
}

// Entities returns all entities ordered by id
func (s *NetworkState) Entities() []common.Entity {
	out := make([]common.Entity, 0, s.entities.Size())
	s.entities.Range(func(_ uuid.UUID, e common.Entity) bool {
		out = append(out, e)
		return true
	})
	slices.SortFunc(out, func(a, b common.Entity) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return out
}

// --------------------------------------------------------------------------
// Components
// --------------------------------------------------------------------------

// AddComponent attaches a new component with a generated id to an existing entity
func (s *NetworkState) AddComponent(entityID uuid.UUID, data []byte) (common.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities.Load(entityID); !ok {
		return common.Component{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	c := common.Component{ID: uuid.New(), EntityID: entityID, Data: bytes.Clone(data)}
	if _, loaded := s.components.LoadOrStore(c.ID, c); loaded {
		return common.Component{}, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	return c, nil
}

// PutComponent inserts or replaces a component. Its entity must exist.
func (s *NetworkState) PutComponent(c common.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putComponent(c)
}

// RemoveComponent removes a component and its synchronized fields
func (s *NetworkState) RemoveComponent(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeComponent(id)
}

// Component returns the component with the given id
func (s *NetworkState) Component(id uuid.UUID) (common.Component, bool) {
	return s.components.Load(id)
}

// Components returns all components ordered by id
func (s *NetworkState) Components() []common.Component {
	out := make([]common.Component, 0, s.components.Size())
	s.components.Range(func(_ uuid.UUID, c common.Component) bool {
		out = append(out, c)
		return true
	})
	slices.SortFunc(out, func(a, b common.Component) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return out
}

// --------------------------------------------------------------------------
// Fields
// --------------------------------------------------------------------------

// SetField stores the value of a synchronized field of a component
func (s *NetworkState) SetField(componentID uuid.UUID, name string, value []byte) error {
	if name == "" {
		return ErrEmptyFieldName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.components.Load(componentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, componentID)
	}
	s.fields.Store(fieldKey{component: componentID, name: name}, bytes.Clone(value))
	return nil
}

// Field returns the last value of a synchronized field
func (s *NetworkState) Field(componentID uuid.UUID, name string) ([]byte, bool) {
	return s.fields.Load(fieldKey{component: componentID, name: name})
}

// --------------------------------------------------------------------------
// Messages
// --------------------------------------------------------------------------

// Snapshot returns a NetworkState message holding every entity and component
func (s *NetworkState) Snapshot() *common.Message {
	return common.NewNetworkStateMessage(s.Entities(), s.Components())
}

// Apply applies a received NetworkState or Sync message
func (s *NetworkState) Apply(msg *common.Message) error {
	switch msg.MsgType {
	case common.MsgTNetworkState:
		s.SetNetworkState(msg.Entities, msg.Components)
		return nil
	case common.MsgTSync:
		return s.SetField(msg.ComponentID, msg.FieldName, msg.Value)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.MsgType)
	}
}

// SetNetworkState replaces the registry content with a received snapshot:
// unknown entries are added, known entries are updated and entries missing from
// the snapshot are dropped. Components of unknown entities are skipped.
func (s *NetworkState) SetNetworkState(entities []common.Entity, components []common.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepEntities := make(map[uuid.UUID]struct{}, len(entities))
	for _, e := range entities {
		keepEntities[e.ID] = struct{}{}
		s.putEntity(e)
	}
	s.entities.Range(func(id uuid.UUID, _ common.Entity) bool {
		if _, ok := keepEntities[id]; !ok {
			s.entities.Delete(id)
		}
		return true
	})

	keepComponents := make(map[uuid.UUID]struct{}, len(components))
	skipped := 0
	for _, c := range components {
		if err := s.putComponent(c); err != nil {
			skipped++
			continue
		}
		keepComponents[c.ID] = struct{}{}
	}
	s.components.Range(func(id uuid.UUID, _ common.Component) bool {
		if _, ok := keepComponents[id]; !ok {
			s.removeComponent(id)
		}
		return true
	})

	if skipped > 0 {
		Logger.Warningf("Skipped %d components of unknown entities", skipped)
	}
	Logger.Debugf("Applied network state: %d entities, %d components", len(keepEntities), len(keepComponents))
}

// --------------------------------------------------------------------------
// Helper Methods (callers hold mu)
// --------------------------------------------------------------------------

func (s *NetworkState) putEntity(e common.Entity) {
	e.Data = bytes.Clone(e.Data)
	s.entities.Store(e.ID, e)
}

func (s *NetworkState) putComponent(c common.Component) error {
	if _, ok := s.entities.Load(c.EntityID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, c.EntityID)
	}
	c.Data = bytes.Clone(c.Data)
	s.components.Store(c.ID, c)
	return nil
}

func (s *NetworkState) removeComponent(id uuid.UUID) bool {
	if _, ok := s.components.LoadAndDelete(id); !ok {
		return false
	}
	s.fields.Range(func(k fieldKey, _ []byte) bool {
		if k.component == id {
			s.fields.Delete(k)
		}
		return true
	})
	return true
}

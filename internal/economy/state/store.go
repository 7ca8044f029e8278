// Package state holds the Snapshot Store: the single in-memory view of a
// session, built by merging streamed partial updates in arrival order.
//
// Apply calls are serialized. A mutation and the notification of its
// listeners form one step: a second Apply waits until every listener of the
// first has returned. Listeners run on the applying goroutine and must not
// call Apply themselves; work that can block belongs on another goroutine.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/protocol"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// Phase is the lifecycle position of a session.
type Phase int

const (
	Uninitialized Phase = iota
	Syncing
	Ready
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Syncing:
		return "syncing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Dirty substructures bumped by generic change signals.
const (
	DirtyQuests  = "quests"
	DirtyActions = "actions"
)

// Event is delivered to listeners after a message has been applied.
type Event struct {
	Type      string
	SessionID string
	Message   protocol.Message
	// Listings is the post-merge collection for market_listings_updated.
	// It is shared with the store and must not be modified.
	Listings []*economy.Listing
}

// Handler receives events. A panicking handler is logged and skipped.
type Handler func(Event)

type listener struct {
	id      uint64
	msgType string
	fn      Handler
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	store *Store
	id    uint64
	once  sync.Once
}

// Unsubscribe removes the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.store.removeListener(s.id) })
}

type snapshot struct {
	sessionID     string
	phase         Phase
	ready         chan struct{}
	haveClient    bool
	haveCharacter bool

	tables         *gamedata.Tables
	character      *protocol.Character
	items          map[string]protocol.CharacterItem
	listings       []*economy.Listing
	houseRooms     map[string]int
	communityBuffs map[string]int
	skills         map[string]int
	drinkSlots     map[string][]*protocol.DrinkSlot
	quests         []protocol.Quest
	actions        []protocol.CharacterAction
	dirty          map[string]uint64
}

func newSnapshot(tables *gamedata.Tables) *snapshot {
	s := &snapshot{
		sessionID:      uuid.NewString(),
		ready:          make(chan struct{}),
		tables:         tables,
		items:          make(map[string]protocol.CharacterItem),
		houseRooms:     make(map[string]int),
		communityBuffs: make(map[string]int),
		skills:         make(map[string]int),
		drinkSlots:     make(map[string][]*protocol.DrinkSlot),
		dirty:          make(map[string]uint64),
	}
	if tables != nil {
		s.haveClient = true
		s.phase = Syncing
	}
	return s
}

// Store owns the Snapshot of one connection. Construct it with New and pass
// it to every consumer.
type Store struct {
	logger *slog.Logger

	applyMu sync.Mutex

	mu   sync.RWMutex
	snap *snapshot

	lmu       sync.Mutex
	listeners []listener
	nextID    uint64
}

// New creates an empty store in the Uninitialized phase.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		snap:   newSnapshot(nil),
	}
}

// Subscribe registers fn for msgType, or for every type with
// protocol.TypeWildcard. Listeners run in registration order.
func (s *Store) Subscribe(msgType string, fn Handler) *Subscription {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listener{id: s.nextID, msgType: msgType, fn: fn})
	return &Subscription{store: s, id: s.nextID}
}

func (s *Store) removeListener(id uint64) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			// Copy so an in-flight emit keeps iterating its own slice.
			next := make([]listener, 0, len(s.listeners)-1)
			next = append(next, s.listeners[:i]...)
			next = append(next, s.listeners[i+1:]...)
			s.listeners = next
			return
		}
	}
}

// Apply decodes one raw frame ({"type": ..., ...}) and applies it.
func (s *Store) Apply(raw []byte) error {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		s.logger.Warn("dropping undecodable frame", "error", err)
		return fmt.Errorf("decoding frame: %w", err)
	}
	return s.ApplyUpdate(base.Type, raw)
}

// ApplyUpdate validates payload for msgType, mutates the snapshot and
// notifies listeners. Invalid payloads leave the snapshot untouched and
// emit nothing.
func (s *Store) ApplyUpdate(msgType string, payload []byte) error {
	msg, err := protocol.DecodePayload(msgType, payload)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			s.logger.Debug("ignoring message", "type", msgType)
		} else {
			s.logger.Warn("skipping malformed message", "type", msgType, "error", err)
		}
		return err
	}
	s.ApplyMessage(msg)
	return nil
}

// ApplyMessage applies an already decoded message.
func (s *Store) ApplyMessage(msg protocol.Message) {
	if msg == nil {
		return
	}
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	ev := s.mutate(msg)
	s.mu.Unlock()

	s.logger.Debug("applied message", "type", ev.Type, "session", ev.SessionID)
	s.emit(ev)
}

// mutate must be called with s.mu held.
func (s *Store) mutate(msg protocol.Message) Event {
	ev := Event{Type: msg.MessageType(), Message: msg}

	switch m := msg.(type) {
	case *protocol.InitClientData:
		s.snap.tables = gamedata.NewTables(m.ClientData)
		s.snap.haveClient = true
		s.advance()

	case *protocol.InitCharacterData:
		if s.snap.character != nil && s.snap.character.ID != m.Character.ID {
			s.logger.Info("character switched, starting new session",
				"from", s.snap.character.ID, "to", m.Character.ID)
			s.teardownLocked()
		}
		s.applyCharacter(m)
		s.snap.haveCharacter = true
		s.advance()

	case *protocol.ItemsUpdated:
		for _, it := range m.EndCharacterItems {
			key := itemSlotKey(it)
			if it.Count <= 0 {
				delete(s.snap.items, key)
				continue
			}
			s.snap.items[key] = it
		}

	case *protocol.MarketListingsUpdated:
		merged, skipped := MergeListings(s.snap.listings, m.EndMarketListings)
		if skipped > 0 {
			s.logger.Warn("skipped listings without id", "count", skipped)
		}
		s.snap.listings = merged
		ev.Listings = merged

	case *protocol.QuestsUpdated:
		s.snap.quests = append([]protocol.Quest(nil), m.EndCharacterQuests...)
		s.snap.dirty[DirtyQuests]++

	case *protocol.ActionsUpdated:
		s.snap.actions = append([]protocol.CharacterAction(nil), m.EndCharacterActions...)
		s.snap.dirty[DirtyActions]++

	case *protocol.ConsumableSlotsUpdated:
		for actionType, slots := range m.ActionTypeDrinkSlotsMap {
			s.snap.drinkSlots[actionType] = slots
		}

	case *protocol.CommunityBuffsUpdated:
		s.snap.communityBuffs = communityBuffMap(m.CommunityBuffs)

	case *protocol.HouseRoomsUpdated:
		s.snap.houseRooms = houseRoomMap(m.CharacterHouseRoomMap)

	case *protocol.SkillsUpdated:
		for _, sk := range m.EndCharacterSkills {
			s.snap.skills[sk.SkillHrid] = sk.Level
		}

	case *protocol.MarketItemOrderBooksUpdated,
		*protocol.NewBattle,
		*protocol.BattleConsumableAbilityUpdated:
		// Notify only.
	}

	ev.SessionID = s.snap.sessionID
	return ev
}

func (s *Store) applyCharacter(m *protocol.InitCharacterData) {
	c := m.Character
	s.snap.character = &c

	s.snap.items = make(map[string]protocol.CharacterItem, len(m.CharacterItems))
	for _, it := range m.CharacterItems {
		if it.Count > 0 {
			s.snap.items[itemSlotKey(it)] = it
		}
	}

	merged, skipped := MergeListings(nil, m.MyMarketListings)
	if skipped > 0 {
		s.logger.Warn("skipped listings without id", "count", skipped)
	}
	s.snap.listings = merged

	s.snap.houseRooms = houseRoomMap(m.CharacterHouseRoomMap)
	s.snap.communityBuffs = communityBuffMap(m.CommunityBuffs)
	s.snap.skills = make(map[string]int, len(m.CharacterSkills))
	for _, sk := range m.CharacterSkills {
		s.snap.skills[sk.SkillHrid] = sk.Level
	}
	s.snap.drinkSlots = make(map[string][]*protocol.DrinkSlot, len(m.ActionTypeDrinkSlotsMap))
	for k, v := range m.ActionTypeDrinkSlotsMap {
		s.snap.drinkSlots[k] = v
	}
	s.snap.quests = append([]protocol.Quest(nil), m.CharacterQuests...)
	s.snap.actions = append([]protocol.CharacterAction(nil), m.CharacterActions...)
	s.snap.dirty[DirtyQuests]++
	s.snap.dirty[DirtyActions]++
}

// advance moves the phase forward. Ready needs both static tables and
// character data; it is never left except by teardown.
func (s *Store) advance() {
	switch {
	case s.snap.phase == Ready:
	case s.snap.haveClient && s.snap.haveCharacter:
		s.snap.phase = Ready
		close(s.snap.ready)
		s.logger.Info("session ready", "session", s.snap.sessionID)
	default:
		s.snap.phase = Syncing
	}
}

// teardownLocked discards character state and starts a new session. Static
// tables belong to the connection and survive. A session that never became
// Ready hands its ready channel on, so WaitReady callers see the next one.
func (s *Store) teardownLocked() {
	prev := s.snap
	s.snap = newSnapshot(prev.tables)
	if prev.phase != Ready {
		s.snap.ready = prev.ready
	}
}

// Teardown ends the current session, e.g. on logout.
func (s *Store) Teardown() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

func (s *Store) emit(ev Event) {
	s.lmu.Lock()
	ls := s.listeners
	s.lmu.Unlock()

	for _, l := range ls {
		if l.msgType != ev.Type && l.msgType != protocol.TypeWildcard {
			continue
		}
		s.invoke(l, ev)
	}
}

func (s *Store) invoke(l listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("listener panicked", "type", ev.Type, "listener", l.id, "panic", r)
		}
	}()
	l.fn(ev)
}

func itemSlotKey(it protocol.CharacterItem) string {
	return it.ItemLocationHrid + "|" + it.Key()
}

func houseRoomMap(in map[string]protocol.HouseRoomLevel) map[string]int {
	out := make(map[string]int, len(in))
	for hrid, room := range in {
		if room.HouseRoomHrid != "" {
			hrid = room.HouseRoomHrid
		}
		out[hrid] = room.Level
	}
	return out
}

func communityBuffMap(in []protocol.CommunityBuff) map[string]int {
	out := make(map[string]int, len(in))
	for _, b := range in {
		out[b.Hrid] = b.Level
	}
	return out
}

// ============================================
// READ ACCESSORS
// ============================================

// SessionID identifies the current session. It changes on teardown.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.sessionID
}

// Phase returns the lifecycle phase of the current session.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.phase
}

// WaitReady blocks until the current session is Ready or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.snap.ready
	s.mu.RUnlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tables returns the static definitions, or nil before init_client_data.
func (s *Store) Tables() *gamedata.Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.tables
}

// Character returns the logged-in character.
func (s *Store) Character() (protocol.Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.character == nil {
		return protocol.Character{}, false
	}
	return *s.snap.character, true
}

// Inventory returns a copy of the unequipped stacks, sorted by key.
func (s *Store) Inventory() []protocol.CharacterItem {
	return s.itemsWhere(func(it protocol.CharacterItem) bool { return !it.IsEquipped() })
}

// Equipment returns a copy of the equipped stacks, sorted by key.
func (s *Store) Equipment() []protocol.CharacterItem {
	return s.itemsWhere(protocol.CharacterItem.IsEquipped)
}

func (s *Store) itemsWhere(keep func(protocol.CharacterItem) bool) []protocol.CharacterItem {
	s.mu.RLock()
	out := make([]protocol.CharacterItem, 0, len(s.snap.items))
	for _, it := range s.snap.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return itemSlotKey(out[i]) < itemSlotKey(out[j]) })
	return out
}

// InventoryCount sums the unequipped count of an item over all
// enhancement levels.
func (s *Store) InventoryCount(itemHrid string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, it := range s.snap.items {
		if it.ItemHrid == itemHrid && !it.IsEquipped() {
			n += it.Count
		}
	}
	return n
}

// Listings returns the live listings collection. A merge always installs a
// new slice, so callers may compare slices by identity to detect changes.
func (s *Store) Listings() []*economy.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.listings
}

// HouseRoomLevel returns the level of a house room, 0 if unbuilt.
func (s *Store) HouseRoomLevel(roomHrid string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.houseRooms[roomHrid]
}

// CommunityBuffLevel returns the level of a community buff, 0 if inactive.
func (s *Store) CommunityBuffLevel(buffHrid string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.communityBuffs[buffHrid]
}

// SkillLevel returns the character's level in a skill.
func (s *Store) SkillLevel(skillHrid string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.skills[skillHrid]
}

// DrinkSlots returns the active drinks for an action type.
func (s *Store) DrinkSlots(actionType string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, slot := range s.snap.drinkSlots[actionType] {
		if slot != nil && slot.ItemHrid != "" && slot.IsActive {
			out = append(out, slot.ItemHrid)
		}
	}
	return out
}

// Quests returns the retained quest list.
func (s *Store) Quests() []protocol.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.Quest(nil), s.snap.quests...)
}

// Quest looks up a quest by id.
func (s *Store) Quest(id int64) (protocol.Quest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.snap.quests {
		if q.ID == id {
			return q, true
		}
	}
	return protocol.Quest{}, false
}

// CharacterActions returns the retained action queue.
func (s *Store) CharacterActions() []protocol.CharacterAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.CharacterAction(nil), s.snap.actions...)
}

// DirtyGeneration returns how often a substructure has been marked changed.
func (s *Store) DirtyGeneration(name string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.dirty[name]
}

// DirtyGenerations returns a copy of every dirty counter.
func (s *Store) DirtyGenerations() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.snap.dirty))
	for k, v := range s.snap.dirty {
		out[k] = v
	}
	return out
}

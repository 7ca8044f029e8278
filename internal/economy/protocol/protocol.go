// Package protocol defines the inbound message union: one type constant and
// one payload struct per message, validated at the boundary.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types.
const (
	TypeInitClientData                 = "init_client_data"
	TypeInitCharacterData              = "init_character_data"
	TypeItemsUpdated                   = "items_updated"
	TypeMarketListingsUpdated          = "market_listings_updated"
	TypeMarketItemOrderBooksUpdated    = "market_item_order_books_updated"
	TypeNewBattle                      = "new_battle"
	TypeBattleConsumableAbilityUpdated = "battle_consumable_ability_updated"
	TypeQuestsUpdated                  = "quests_updated"
	TypeActionsUpdated                 = "actions_updated"
	TypeConsumableSlotsUpdated         = "action_type_consumable_slots_updated"
	TypeCommunityBuffsUpdated          = "community_buffs_updated"
	TypeHouseRoomsUpdated              = "house_rooms_updated"
	TypeSkillsUpdated                  = "skills_updated"

	// TypeWildcard subscribes to every message type.
	TypeWildcard = "*"
)

var (
	// ErrUnknownType is returned for message types this server ignores.
	ErrUnknownType = errors.New("unknown message type")
	// ErrInvalidPayload is returned when a payload fails schema validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Message is implemented by every payload struct.
type Message interface {
	MessageType() string
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

// DecodeBase reads only the type tag of a frame.
func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Decode routes a full frame by its type tag.
func Decode(raw []byte) (Message, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if base.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return DecodePayload(base.Type, raw)
}

// DecodePayload validates payload against the schema for msgType and decodes
// it into the matching struct.
func DecodePayload(msgType string, payload []byte) (Message, error) {
	msg := newMessage(msgType)
	if msg == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}
	if err := Validate(msgType, payload); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msgType, err)
	}
	return msg, nil
}

func newMessage(msgType string) Message {
	switch msgType {
	case TypeInitClientData:
		return &InitClientData{}
	case TypeInitCharacterData:
		return &InitCharacterData{}
	case TypeItemsUpdated:
		return &ItemsUpdated{}
	case TypeMarketListingsUpdated:
		return &MarketListingsUpdated{}
	case TypeMarketItemOrderBooksUpdated:
		return &MarketItemOrderBooksUpdated{}
	case TypeNewBattle:
		return &NewBattle{}
	case TypeBattleConsumableAbilityUpdated:
		return &BattleConsumableAbilityUpdated{}
	case TypeQuestsUpdated:
		return &QuestsUpdated{}
	case TypeActionsUpdated:
		return &ActionsUpdated{}
	case TypeConsumableSlotsUpdated:
		return &ConsumableSlotsUpdated{}
	case TypeCommunityBuffsUpdated:
		return &CommunityBuffsUpdated{}
	case TypeHouseRoomsUpdated:
		return &HouseRoomsUpdated{}
	case TypeSkillsUpdated:
		return &SkillsUpdated{}
	default:
		return nil
	}
}

// IsKnownType reports whether msgType has a payload struct.
func IsKnownType(msgType string) bool {
	return newMessage(msgType) != nil
}

package protocol

import (
	"strconv"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// InventoryLocation is where unequipped items live.
const InventoryLocation = "/item_locations/inventory"

// Character identifies the logged-in character.
type Character struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	GameMode string `json:"gameMode,omitempty"`
}

// CharacterItem is a stack of items at one location.
type CharacterItem struct {
	ItemHrid         string `json:"itemHrid"`
	ItemLocationHrid string `json:"itemLocationHrid"`
	EnhancementLevel int    `json:"enhancementLevel"`
	Count            int64  `json:"count"`
}

// Key identifies the stack: item plus enhancement level.
func (i CharacterItem) Key() string {
	return i.ItemHrid + "::" + strconv.Itoa(i.EnhancementLevel)
}

// IsEquipped reports whether the stack sits in an equipment slot.
func (i CharacterItem) IsEquipped() bool {
	return i.ItemLocationHrid != "" && i.ItemLocationHrid != InventoryLocation
}

// HouseRoomLevel is the level of one house room.
type HouseRoomLevel struct {
	HouseRoomHrid string `json:"houseRoomHrid"`
	Level         int    `json:"level"`
}

// CommunityBuff is a server-wide buff and its level.
type CommunityBuff struct {
	Hrid  string `json:"hrid"`
	Level int    `json:"level"`
}

// CharacterSkill is the character's level in one skill.
type CharacterSkill struct {
	SkillHrid  string  `json:"skillHrid"`
	Level      int     `json:"level"`
	Experience float64 `json:"experience"`
}

// DrinkSlot is one consumable slot for an action type. Empty slots are null.
type DrinkSlot struct {
	ItemHrid string `json:"itemHrid"`
	IsActive bool   `json:"isActive"`
}

// Quest is a task or quest offered to the character.
type Quest struct {
	ID              int64  `json:"id"`
	Category        string `json:"category,omitempty"`
	Type            string `json:"type,omitempty"`
	ActionHrid      string `json:"actionHrid,omitempty"`
	MonsterHrid     string `json:"monsterHrid,omitempty"`
	Description     string `json:"description,omitempty"`
	GoalCount       int64  `json:"goalCount"`
	CurrentCount    int64  `json:"currentCount"`
	CoinReward      int64  `json:"coinReward,omitempty"`
	TaskTokenReward int64  `json:"taskTokenReward,omitempty"`
	Status          string `json:"status,omitempty"`
}

// Descriptor converts a quest into the task aggregator's input.
func (q Quest) Descriptor() economy.TaskDescriptor {
	return economy.TaskDescriptor{
		ID:           q.ID,
		Description:  q.Description,
		ActionHrid:   q.ActionHrid,
		GoalCount:    q.GoalCount,
		CurrentCount: q.CurrentCount,
		CoinReward:   q.CoinReward,
		TokenReward:  q.TaskTokenReward,
	}
}

// CharacterAction is one entry of the action queue.
type CharacterAction struct {
	ID           int64  `json:"id"`
	ActionHrid   string `json:"actionHrid"`
	HasMaxCount  bool   `json:"hasMaxCount"`
	MaxCount     int64  `json:"maxCount"`
	CurrentCount int64  `json:"currentCount"`
	IsDone       bool   `json:"isDone"`
}

// ItemStack is an item hrid with a count.
type ItemStack struct {
	ItemHrid string `json:"itemHrid"`
	Count    int64  `json:"count"`
}

// OrderLevel is one price level of an order book.
type OrderLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// OrderBook is the book for one enhancement level.
type OrderBook struct {
	Asks []OrderLevel `json:"asks"`
	Bids []OrderLevel `json:"bids"`
}

// ItemOrderBooks holds the books of one item, indexed by enhancement level.
type ItemOrderBooks struct {
	ItemHrid   string      `json:"itemHrid"`
	OrderBooks []OrderBook `json:"orderBooks"`
}

// BattlePlayer is one player's state in a battle snapshot.
type BattlePlayer struct {
	Character          Character          `json:"character"`
	CombatConsumables  []ItemStack        `json:"combatConsumables,omitempty"`
	TotalLootMap       map[string]int64   `json:"totalLootMap,omitempty"`
	TotalExperienceMap map[string]float64 `json:"totalExperienceMap,omitempty"`
}

// InitClientData carries the static game definitions.
type InitClientData struct {
	Type string `json:"type,omitempty"`
	gamedata.ClientData
}

func (*InitClientData) MessageType() string { return TypeInitClientData }

// InitCharacterData carries the full character state at login.
type InitCharacterData struct {
	Type                    string                    `json:"type,omitempty"`
	Character               Character                 `json:"character"`
	CharacterItems          []CharacterItem           `json:"characterItems,omitempty"`
	MyMarketListings        []economy.Listing         `json:"myMarketListings,omitempty"`
	CharacterHouseRoomMap   map[string]HouseRoomLevel `json:"characterHouseRoomMap,omitempty"`
	CommunityBuffs          []CommunityBuff           `json:"communityBuffs,omitempty"`
	CharacterSkills         []CharacterSkill          `json:"characterSkills,omitempty"`
	ActionTypeDrinkSlotsMap map[string][]*DrinkSlot   `json:"actionTypeDrinkSlotsMap,omitempty"`
	CharacterQuests         []Quest                   `json:"characterQuests,omitempty"`
	CharacterActions        []CharacterAction         `json:"characterActions,omitempty"`
}

func (*InitCharacterData) MessageType() string { return TypeInitCharacterData }

// ItemsUpdated carries changed item stacks. A count of zero removes a stack.
type ItemsUpdated struct {
	Type              string          `json:"type,omitempty"`
	EndCharacterItems []CharacterItem `json:"endCharacterItems"`
}

func (*ItemsUpdated) MessageType() string { return TypeItemsUpdated }

// MarketListingsUpdated carries changed listings of the character.
type MarketListingsUpdated struct {
	Type              string            `json:"type,omitempty"`
	EndMarketListings []economy.Listing `json:"endMarketListings"`
}

func (*MarketListingsUpdated) MessageType() string { return TypeMarketListingsUpdated }

// MarketItemOrderBooksUpdated carries a freshly viewed order book.
type MarketItemOrderBooksUpdated struct {
	Type                 string         `json:"type,omitempty"`
	MarketItemOrderBooks ItemOrderBooks `json:"marketItemOrderBooks"`
}

func (*MarketItemOrderBooksUpdated) MessageType() string { return TypeMarketItemOrderBooksUpdated }

// NewBattle is a snapshot of the current battle.
type NewBattle struct {
	Type            string         `json:"type,omitempty"`
	BattleID        int64          `json:"battleId"`
	CombatStartTime string         `json:"combatStartTime,omitempty"`
	Players         []BattlePlayer `json:"players"`
}

func (*NewBattle) MessageType() string { return TypeNewBattle }

// BattleConsumableAbilityUpdated is a single consumable use by the local
// character.
type BattleConsumableAbilityUpdated struct {
	Type       string    `json:"type,omitempty"`
	Consumable ItemStack `json:"consumable"`
}

func (*BattleConsumableAbilityUpdated) MessageType() string {
	return TypeBattleConsumableAbilityUpdated
}

// QuestsUpdated carries the current quest list.
type QuestsUpdated struct {
	Type               string  `json:"type,omitempty"`
	EndCharacterQuests []Quest `json:"endCharacterQuests,omitempty"`
}

func (*QuestsUpdated) MessageType() string { return TypeQuestsUpdated }

// ActionsUpdated carries the current action queue.
type ActionsUpdated struct {
	Type                string            `json:"type,omitempty"`
	EndCharacterActions []CharacterAction `json:"endCharacterActions,omitempty"`
}

func (*ActionsUpdated) MessageType() string { return TypeActionsUpdated }

// ConsumableSlotsUpdated carries the drink slots of every action type.
type ConsumableSlotsUpdated struct {
	Type                    string                  `json:"type,omitempty"`
	ActionTypeDrinkSlotsMap map[string][]*DrinkSlot `json:"actionTypeDrinkSlotsMap"`
}

func (*ConsumableSlotsUpdated) MessageType() string { return TypeConsumableSlotsUpdated }

// CommunityBuffsUpdated carries all community buff levels.
type CommunityBuffsUpdated struct {
	Type           string          `json:"type,omitempty"`
	CommunityBuffs []CommunityBuff `json:"communityBuffs"`
}

func (*CommunityBuffsUpdated) MessageType() string { return TypeCommunityBuffsUpdated }

// HouseRoomsUpdated carries all house room levels.
type HouseRoomsUpdated struct {
	Type                  string                    `json:"type,omitempty"`
	CharacterHouseRoomMap map[string]HouseRoomLevel `json:"characterHouseRoomMap"`
}

func (*HouseRoomsUpdated) MessageType() string { return TypeHouseRoomsUpdated }

// SkillsUpdated carries changed skill levels.
type SkillsUpdated struct {
	Type               string           `json:"type,omitempty"`
	EndCharacterSkills []CharacterSkill `json:"endCharacterSkills"`
}

func (*SkillsUpdated) MessageType() string { return TypeSkillsUpdated }

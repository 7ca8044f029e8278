// Package gamedata holds the static game definitions delivered once per
// session: items, actions, reward tables, house rooms and the token shop.
package gamedata

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnknownItem is returned for item hrids absent from the tables.
	ErrUnknownItem = errors.New("unknown item")
	// ErrUnknownAction is returned for action hrids absent from the tables.
	ErrUnknownAction = errors.New("unknown action")
)

// Item categories the calculators care about.
const (
	CategoryDrink    = "/item_categories/drink"
	CategoryFood     = "/item_categories/food"
	CategoryCurrency = "/item_categories/currency"
)

// ActionTypeCombat is the action type of every combat encounter.
const ActionTypeCombat = "/action_types/combat"

// Function is the broad family an action belongs to.
type Function string

const (
	FunctionGathering  Function = "gathering"
	FunctionProduction Function = "production"
	FunctionCombat     Function = "combat"
)

// ItemCount is an item with a fixed quantity.
type ItemCount struct {
	ItemHrid string  `json:"itemHrid"`
	Count    float64 `json:"count"`
}

// DropEntry is one probabilistic output of an action.
type DropEntry struct {
	ItemHrid string  `json:"itemHrid"`
	DropRate float64 `json:"dropRate"`
	MinCount float64 `json:"minCount"`
	MaxCount float64 `json:"maxCount"`
}

// AverageCount is the expected midpoint of the drop's count range.
func (d DropEntry) AverageCount() float64 {
	return (d.MinCount + d.MaxCount) / 2
}

// Buff is one effect of a consumable. Values are fractions (0.1 = 10%).
type Buff struct {
	TypeHrid   string  `json:"typeHrid"`
	FlatBoost  float64 `json:"flatBoost"`
	RatioBoost float64 `json:"ratioBoost"`
}

// Amount is the buff's magnitude.
func (b Buff) Amount() float64 {
	return b.FlatBoost + b.RatioBoost
}

// ConsumableDetail describes what drinking or eating an item does.
type ConsumableDetail struct {
	Buffs []Buff `json:"buffs,omitempty"`
}

// EquipmentDetail describes an equippable item's skilling stats.
type EquipmentDetail struct {
	Type           string             `json:"type"`
	NoncombatStats map[string]float64 `json:"noncombatStats,omitempty"`
}

// ItemDetail is the static definition of one item.
type ItemDetail struct {
	Hrid             string            `json:"hrid"`
	Name             string            `json:"name"`
	CategoryHrid     string            `json:"categoryHrid"`
	SellPrice        float64           `json:"sellPrice"`
	IsTradable       bool              `json:"isTradable"`
	ConsumableDetail *ConsumableDetail `json:"consumableDetail,omitempty"`
	EquipmentDetail  *EquipmentDetail  `json:"equipmentDetail,omitempty"`
}

// LevelRequirement gates an action on a skill level.
type LevelRequirement struct {
	SkillHrid string `json:"skillHrid"`
	Level     int    `json:"level"`
}

// ActionDetail is the static definition of a repeatable action.
type ActionDetail struct {
	Hrid             string           `json:"hrid"`
	Name             string           `json:"name"`
	Type             string           `json:"type"`
	Function         Function         `json:"function"`
	BaseTimeCost     int64            `json:"baseTimeCost"` // nanoseconds
	LevelRequirement LevelRequirement `json:"levelRequirement"`
	InputItems       []ItemCount      `json:"inputItems,omitempty"`
	OutputItems      []ItemCount      `json:"outputItems,omitempty"`
	UpgradeItemHrid  string           `json:"upgradeItemHrid,omitempty"`
	DropTable        []DropEntry      `json:"dropTable,omitempty"`
	EssenceDropTable []DropEntry      `json:"essenceDropTable,omitempty"`
	RareDropTable    []DropEntry      `json:"rareDropTable,omitempty"`
}

// BaseDuration is the unmodified time one action takes.
func (a *ActionDetail) BaseDuration() time.Duration {
	return time.Duration(a.BaseTimeCost)
}

// TypeName is the last path element of the action type, e.g. "milking".
func (a *ActionDetail) TypeName() string {
	return path.Base(a.Type)
}

// IsCombat reports whether the action is a combat encounter.
func (a *ActionDetail) IsCombat() bool {
	return a.Function == FunctionCombat || a.Type == ActionTypeCombat
}

// HouseRoom is a house room that boosts some action types.
type HouseRoom struct {
	Hrid                  string          `json:"hrid"`
	Name                  string          `json:"name"`
	SkillHrid             string          `json:"skillHrid"`
	UsableInActionTypeMap map[string]bool `json:"usableInActionTypeMap"`
}

// TokenRedemption is one way to spend tokens in the token shop.
type TokenRedemption struct {
	TokenHrid string  `json:"tokenHrid"`
	ItemHrid  string  `json:"itemHrid"`
	Cost      float64 `json:"cost"`
}

// ProcessingConversion turns a raw gathered item into its processed form.
type ProcessingConversion struct {
	ActionHrid        string
	RawItemHrid       string
	ProcessedItemHrid string
	InputCount        float64
	OutputCount       float64
}

// ClientData is the wire shape of the static definitions.
type ClientData struct {
	GameVersion        string                   `json:"gameVersion"`
	ItemDetailMap      map[string]*ItemDetail   `json:"itemDetailMap"`
	ActionDetailMap    map[string]*ActionDetail `json:"actionDetailMap"`
	RewardTableMap     map[string]*RewardTable  `json:"rewardTableMap,omitempty"`
	HouseRoomDetailMap map[string]*HouseRoom    `json:"houseRoomDetailMap,omitempty"`
	TokenShop          []TokenRedemption        `json:"tokenShop,omitempty"`
}

// Tables is the indexed, read-only view of ClientData.
type Tables struct {
	Version string

	items        map[string]*ItemDetail
	actions      map[string]*ActionDetail
	rewardTables map[string]*RewardTable
	houseRooms   map[string]*HouseRoom
	tokenShop    []TokenRedemption

	processing map[string]ProcessingConversion
	byTypeName map[string][]*ActionDetail
}

// Decode parses a ClientData document and indexes it.
func Decode(raw []byte) (*Tables, error) {
	var cd ClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, fmt.Errorf("parsing client data: %w", err)
	}
	return NewTables(cd), nil
}

// NewTables indexes cd. Map keys win over the hrid fields inside entries
// when the two disagree.
func NewTables(cd ClientData) *Tables {
	t := &Tables{
		Version:      cd.GameVersion,
		items:        make(map[string]*ItemDetail, len(cd.ItemDetailMap)),
		actions:      make(map[string]*ActionDetail, len(cd.ActionDetailMap)),
		rewardTables: make(map[string]*RewardTable, len(cd.RewardTableMap)),
		houseRooms:   make(map[string]*HouseRoom, len(cd.HouseRoomDetailMap)),
		tokenShop:    append([]TokenRedemption(nil), cd.TokenShop...),
		processing:   make(map[string]ProcessingConversion),
		byTypeName:   make(map[string][]*ActionDetail),
	}

	for hrid, item := range cd.ItemDetailMap {
		if item == nil {
			continue
		}
		item.Hrid = hrid
		t.items[hrid] = item
	}
	for hrid, action := range cd.ActionDetailMap {
		if action == nil {
			continue
		}
		action.Hrid = hrid
		t.actions[hrid] = action
		name := strings.ToLower(action.TypeName())
		t.byTypeName[name] = append(t.byTypeName[name], action)
	}
	for hrid, table := range cd.RewardTableMap {
		if table == nil {
			continue
		}
		table.Hrid = hrid
		t.rewardTables[hrid] = table
	}
	for hrid, room := range cd.HouseRoomDetailMap {
		if room == nil {
			continue
		}
		room.Hrid = hrid
		t.houseRooms[hrid] = room
	}

	t.indexProcessing()
	return t
}

// indexProcessing derives raw -> processed conversions: production actions
// with exactly one input and no upgrade item, whose input is gathered.
func (t *Tables) indexProcessing() {
	gathered := make(map[string]bool)
	for _, a := range t.actions {
		if a.Function != FunctionGathering {
			continue
		}
		for _, d := range a.DropTable {
			gathered[d.ItemHrid] = true
		}
	}

	// Sorted so that duplicate candidates resolve the same way every load.
	hrids := make([]string, 0, len(t.actions))
	for hrid := range t.actions {
		hrids = append(hrids, hrid)
	}
	sort.Strings(hrids)

	for _, hrid := range hrids {
		a := t.actions[hrid]
		if a.Function != FunctionProduction || a.UpgradeItemHrid != "" {
			continue
		}
		if len(a.InputItems) != 1 || len(a.OutputItems) != 1 {
			continue
		}
		in, out := a.InputItems[0], a.OutputItems[0]
		if !gathered[in.ItemHrid] || in.Count <= 0 {
			continue
		}
		if _, exists := t.processing[in.ItemHrid]; exists {
			continue
		}
		t.processing[in.ItemHrid] = ProcessingConversion{
			ActionHrid:        hrid,
			RawItemHrid:       in.ItemHrid,
			ProcessedItemHrid: out.ItemHrid,
			InputCount:        in.Count,
			OutputCount:       out.Count,
		}
	}
}

// Item looks up an item definition.
func (t *Tables) Item(hrid string) (*ItemDetail, bool) {
	item, ok := t.items[hrid]
	return item, ok
}

// Action looks up an action definition.
func (t *Tables) Action(hrid string) (*ActionDetail, bool) {
	a, ok := t.actions[hrid]
	return a, ok
}

// RewardTable looks up a reward table. Openable items share their hrid with
// their table.
func (t *Tables) RewardTable(hrid string) (*RewardTable, bool) {
	rt, ok := t.rewardTables[hrid]
	return rt, ok
}

// IsOpenable reports whether an item yields a reward table when opened.
func (t *Tables) IsOpenable(itemHrid string) bool {
	_, ok := t.rewardTables[itemHrid]
	return ok
}

// ItemCategory returns the category hrid of an item, or "" if unknown.
func (t *Tables) ItemCategory(itemHrid string) string {
	if item, ok := t.items[itemHrid]; ok {
		return item.CategoryHrid
	}
	return ""
}

// ItemName returns the display name of an item, falling back to its hrid.
func (t *Tables) ItemName(itemHrid string) string {
	if item, ok := t.items[itemHrid]; ok && item.Name != "" {
		return item.Name
	}
	return itemHrid
}

// ProcessingFor returns the conversion that consumes rawItemHrid, if any.
func (t *Tables) ProcessingFor(rawItemHrid string) (ProcessingConversion, bool) {
	c, ok := t.processing[rawItemHrid]
	return c, ok
}

// HouseRoomsFor returns the rooms that boost an action type, sorted by hrid.
func (t *Tables) HouseRoomsFor(actionType string) []*HouseRoom {
	var rooms []*HouseRoom
	for _, room := range t.houseRooms {
		if room.UsableInActionTypeMap[actionType] {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Hrid < rooms[j].Hrid })
	return rooms
}

// TokenShop returns the redemption options for a token.
func (t *Tables) TokenShop(tokenHrid string) []TokenRedemption {
	var out []TokenRedemption
	for _, r := range t.tokenShop {
		if r.TokenHrid == tokenHrid {
			out = append(out, r)
		}
	}
	return out
}

// TokenHrids lists every token that has at least one redemption option.
func (t *Tables) TokenHrids() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.tokenShop {
		if !seen[r.TokenHrid] {
			seen[r.TokenHrid] = true
			out = append(out, r.TokenHrid)
		}
	}
	sort.Strings(out)
	return out
}

// FindAction resolves an action by its type name ("Milking") and display
// name ("Cow"), case-insensitively.
func (t *Tables) FindAction(typeName, name string) (*ActionDetail, bool) {
	candidates := t.byTypeName[strings.ToLower(strings.TrimSpace(typeName))]
	name = strings.TrimSpace(name)
	for _, a := range candidates {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return nil, false
}

// ActionCount returns the number of action definitions.
func (t *Tables) ActionCount() int { return len(t.actions) }

// ItemCount returns the number of item definitions.
func (t *Tables) ItemCount() int { return len(t.items) }

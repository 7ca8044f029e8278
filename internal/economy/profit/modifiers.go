package profit

import (
	"strings"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/protocol"
)

// Community buffs that affect skilling.
const (
	CommunityProductionEfficiency = "/community_buff_types/production_efficiency"
	CommunityGatheringQuantity    = "/community_buff_types/gathering_quantity"
)

// Drink buff types.
const (
	BuffEfficiency  = "/buff_types/efficiency"
	BuffGathering   = "/buff_types/gathering"
	BuffGourmet     = "/buff_types/gourmet"
	BuffProcessing  = "/buff_types/processing"
	BuffArtisan     = "/buff_types/artisan"
	BuffActionSpeed = "/buff_types/action_speed"
	BuffRareFind    = "/buff_types/rare_find"
	BuffEssenceFind = "/buff_types/essence_find"
)

// Modifiers are the ambient multipliers of one action for one character.
// All values are fractions: 0.1 means +10%.
type Modifiers struct {
	Speed              float64  `json:"speed"`
	Efficiency         float64  `json:"efficiency"`
	GatheringQuantity  float64  `json:"gathering_quantity"`
	Gourmet            float64  `json:"gourmet"`
	Processing         float64  `json:"processing"`
	Artisan            float64  `json:"artisan"`
	RareFind           float64  `json:"rare_find"`
	EssenceFind        float64  `json:"essence_find"`
	DrinkConcentration float64  `json:"drink_concentration"`
	Drinks             []string `json:"drinks,omitempty"`
}

// CharacterState is the part of the Snapshot Store modifiers are read from.
type CharacterState interface {
	Tables() *gamedata.Tables
	SkillLevel(skillHrid string) int
	HouseRoomLevel(roomHrid string) int
	CommunityBuffLevel(buffHrid string) int
	DrinkSlots(actionType string) []string
	Equipment() []protocol.CharacterItem
}

// DeriveModifiers collects every bonus that applies to action.
func DeriveModifiers(cs CharacterState, action *gamedata.ActionDetail, settings Settings) Modifiers {
	var m Modifiers
	tables := cs.Tables()
	skill := action.TypeName()

	// Equipment first: drink concentration scales the drinks below.
	var equipLevels float64
	if tables != nil {
		for _, it := range cs.Equipment() {
			item, ok := tables.Item(it.ItemHrid)
			if !ok || item.EquipmentDetail == nil {
				continue
			}
			equipLevels += m.addEquipment(item.EquipmentDetail.NoncombatStats, skill, action.Function)
		}
	}

	// Drinks
	var drinkLevels float64
	for _, hrid := range cs.DrinkSlots(action.Type) {
		m.Drinks = append(m.Drinks, hrid)
		if tables == nil {
			continue
		}
		item, ok := tables.Item(hrid)
		if !ok || item.ConsumableDetail == nil {
			continue
		}
		for _, buff := range item.ConsumableDetail.Buffs {
			drinkLevels += m.addBuff(buff.TypeHrid, buff.Amount()*(1+m.DrinkConcentration), skill)
		}
	}

	// Level advantage
	req := action.LevelRequirement
	if req.SkillHrid != "" {
		level := float64(cs.SkillLevel(req.SkillHrid)) + equipLevels + drinkLevels
		if adv := level - float64(req.Level); adv > 0 {
			m.Efficiency += adv / 100
		}
	}

	// House rooms
	if tables != nil {
		for _, room := range tables.HouseRoomsFor(action.Type) {
			m.Efficiency += float64(cs.HouseRoomLevel(room.Hrid)) * settings.HouseRoomEfficiencyPerLevel
		}
	}

	// Community buffs
	switch action.Function {
	case gamedata.FunctionProduction:
		if lvl := cs.CommunityBuffLevel(CommunityProductionEfficiency); lvl > 0 {
			m.Efficiency += 0.14 + 0.003*float64(lvl-1)
		}
	case gamedata.FunctionGathering:
		if lvl := cs.CommunityBuffLevel(CommunityGatheringQuantity); lvl > 0 {
			m.GatheringQuantity += 0.20 + 0.005*float64(lvl-1)
		}
	}

	return m
}

// addEquipment applies one item's noncombat stats and returns any skill
// level bonus it grants.
func (m *Modifiers) addEquipment(stats map[string]float64, skill string, fn gamedata.Function) float64 {
	var levels float64
	for stat, v := range stats {
		switch stat {
		case skill + "Speed", "skillingSpeed":
			m.Speed += v
		case skill + "Efficiency", "skillingEfficiency":
			m.Efficiency += v
		case skill + "RareFind", "skillingRareFind":
			m.RareFind += v
		case skill + "EssenceFind", "skillingEssenceFind":
			m.EssenceFind += v
		case "drinkConcentration":
			m.DrinkConcentration += v
		case "gatheringQuantity":
			if fn == gamedata.FunctionGathering {
				m.GatheringQuantity += v
			}
		case skill + "Level":
			levels += v
		}
	}
	return levels
}

// addBuff applies one drink buff and returns any skill level bonus.
func (m *Modifiers) addBuff(typeHrid string, amount float64, skill string) float64 {
	switch typeHrid {
	case BuffEfficiency:
		m.Efficiency += amount
	case BuffGathering:
		m.GatheringQuantity += amount
	case BuffGourmet:
		m.Gourmet += amount
	case BuffProcessing:
		m.Processing += amount
	case BuffArtisan:
		m.Artisan += amount
	case BuffActionSpeed:
		m.Speed += amount
	case BuffRareFind:
		m.RareFind += amount
	case BuffEssenceFind:
		m.EssenceFind += amount
	default:
		if strings.TrimPrefix(typeHrid, "/buff_types/") == skill+"_level" {
			return amount
		}
	}
	return 0
}

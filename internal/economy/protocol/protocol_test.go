package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecode_Routes(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"type":"items_updated","endCharacterItems":[{"itemHrid":"/items/milk","itemLocationHrid":"/item_locations/inventory","count":4}]}`, TypeItemsUpdated},
		{`{"type":"battle_consumable_ability_updated","consumable":{"itemHrid":"/items/donut","count":1}}`, TypeBattleConsumableAbilityUpdated},
		{`{"type":"quests_updated","endCharacterQuests":[]}`, TypeQuestsUpdated},
		{`{"type":"community_buffs_updated","communityBuffs":[{"hrid":"/community_buff_types/production_efficiency","level":2}]}`, TypeCommunityBuffsUpdated},
		{`{"type":"skills_updated","endCharacterSkills":[{"skillHrid":"/skills/milking","level":30}]}`, TypeSkillsUpdated},
	}
	for _, tc := range tests {
		msg, err := Decode([]byte(tc.frame))
		if err != nil {
			t.Errorf("Decode(%s): %v", tc.want, err)
			continue
		}
		if msg.MessageType() != tc.want {
			t.Errorf("MessageType = %s, want %s", msg.MessageType(), tc.want)
		}
	}

	msg, err := Decode([]byte(`{"type":"items_updated","endCharacterItems":[{"itemHrid":"/items/milk","count":4}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items := msg.(*ItemsUpdated)
	if len(items.EndCharacterItems) != 1 || items.EndCharacterItems[0].Count != 4 {
		t.Errorf("items = %+v", items.EndCharacterItems)
	}
}

func TestDecode_Fixtures(t *testing.T) {
	for name, want := range map[string]string{
		"client_data.json":    TypeInitClientData,
		"character_data.json": TypeInitCharacterData,
	} {
		raw, err := os.ReadFile(filepath.Join("..", "testdata", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		msg, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode %s: %v", name, err)
		}
		if msg.MessageType() != want {
			t.Errorf("%s decoded as %s", name, msg.MessageType())
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"missing type", `{"endCharacterItems":[]}`, ErrInvalidPayload},
		{"unknown type", `{"type":"chat_message_received","message":"hi"}`, ErrUnknownType},
		{"item without hrid", `{"type":"items_updated","endCharacterItems":[{"count":1}]}`, ErrInvalidPayload},
		{"negative count", `{"type":"items_updated","endCharacterItems":[{"itemHrid":"/items/milk","count":-1}]}`, ErrInvalidPayload},
		{"empty consumable", `{"type":"battle_consumable_ability_updated","consumable":{"itemHrid":""}}`, ErrInvalidPayload},
		{"client data without maps", `{"type":"init_client_data","gameVersion":"1"}`, ErrInvalidPayload},
	}
	for _, tc := range tests {
		if _, err := Decode([]byte(tc.frame)); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Errorf("non-JSON frame accepted")
	}
}

func TestValidate_UnschemedTypePasses(t *testing.T) {
	if err := Validate("chat_message_received", []byte(`{"anything":true}`)); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
	if err := Validate(TypeItemsUpdated, []byte(`{`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Validate broken JSON = %v", err)
	}
}

func TestIsKnownType(t *testing.T) {
	for _, typ := range []string{TypeInitClientData, TypeNewBattle, TypeConsumableSlotsUpdated, TypeHouseRoomsUpdated} {
		if !IsKnownType(typ) {
			t.Errorf("IsKnownType(%s) = false", typ)
		}
	}
	for _, typ := range []string{"", TypeWildcard, "pong"} {
		if IsKnownType(typ) {
			t.Errorf("IsKnownType(%q) = true", typ)
		}
	}
}

func TestCharacterItem(t *testing.T) {
	inv := CharacterItem{ItemHrid: "/items/brush", ItemLocationHrid: InventoryLocation, EnhancementLevel: 2}
	if inv.Key() != "/items/brush::2" {
		t.Errorf("Key = %s", inv.Key())
	}
	if inv.IsEquipped() {
		t.Errorf("inventory stack reported equipped")
	}
	worn := CharacterItem{ItemHrid: "/items/brush", ItemLocationHrid: "/item_locations/milking_tool"}
	if !worn.IsEquipped() {
		t.Errorf("tool slot stack not equipped")
	}
	if (CharacterItem{ItemHrid: "/items/milk"}).IsEquipped() {
		t.Errorf("stack without location reported equipped")
	}
}

func TestQuestDescriptor(t *testing.T) {
	q := Quest{
		ID:              7,
		ActionHrid:      "/actions/milking/cow",
		Description:     "Milking - Cow",
		GoalCount:       100,
		CurrentCount:    40,
		CoinReward:      5000,
		TaskTokenReward: 2,
	}
	d := q.Descriptor()
	if d.ID != 7 || d.ActionHrid != q.ActionHrid || d.Description != q.Description {
		t.Errorf("descriptor = %+v", d)
	}
	if d.GoalCount != 100 || d.CurrentCount != 40 || d.CoinReward != 5000 || d.TokenReward != 2 {
		t.Errorf("descriptor counts = %+v", d)
	}
}

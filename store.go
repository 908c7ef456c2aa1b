package main

// Modifier is a permanent upgrade a player can buy.
// Multipliers below 1 are treated as 1: stats only ever grow.
type Modifier struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       int     `json:"price"`
	SpeedMul    float64 `json:"-"`
	AccelMul    float64 `json:"-"`
	WidthMul    float64 `json:"-"`
	HeightMul   float64 `json:"-"`
}

// ModifierCatalog is the full list of purchasable modifiers
var ModifierCatalog = []Modifier{
	{
		ID: "faster", Name: "Faster", Price: 1000,
		Description: "Increases your max speed and acceleration by 20%",
		Image:       "/assets/img/items/faster.png",
		SpeedMul:    1.2, AccelMul: 1.2, WidthMul: 1, HeightMul: 1,
	},
	{
		ID: "stronger", Name: "Stronger", Price: 1000,
		Description: "Increases your height by 20%",
		Image:       "/assets/img/items/stronger.png",
		SpeedMul:    1, AccelMul: 1, WidthMul: 1, HeightMul: 1.2,
	},
	{
		ID: "turbo", Name: "Turbo", Price: 2000,
		Description: "Increases your max speed by 25% and doubles your acceleration",
		Image:       "/assets/img/items/turbo.png",
		SpeedMul:    1.25, AccelMul: 2, WidthMul: 1, HeightMul: 1,
	},
	{
		ID: "giant", Name: "Giant", Price: 2000,
		Description: "Increases your width and height by 25%",
		Image:       "/assets/img/items/giant.png",
		SpeedMul:    1, AccelMul: 1, WidthMul: 1.25, HeightMul: 1.25,
	},
}

// modifierByID provides O(1) lookup by modifier ID
var modifierByID map[string]Modifier

func init() {
	modifierByID = make(map[string]Modifier, len(ModifierCatalog))
	for _, m := range ModifierCatalog {
		modifierByID[m.ID] = m
	}
}

// LookupModifier returns the catalog entry for id
func LookupModifier(id string) (Modifier, bool) {
	m, ok := modifierByID[id]
	return m, ok
}

// StoreItem is a catalog entry as shown to a signed-in account
type StoreItem struct {
	Modifier
	Owned bool `json:"owned"`
}

// StoreItems lists the catalog, flagging the ids in owned
func StoreItems(owned []string) []StoreItem {
	has := make(map[string]bool, len(owned))
	for _, id := range owned {
		has[id] = true
	}
	items := make([]StoreItem, 0, len(ModifierCatalog))
	for _, m := range ModifierCatalog {
		items = append(items, StoreItem{Modifier: m, Owned: has[m.ID]})
	}
	return items
}

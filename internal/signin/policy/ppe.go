package policy

// PPEItem is a recognised piece of personal protective equipment.
type PPEItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const (
	PPEBoots   = "boots"
	PPEHiVis   = "hivis"
	PPEHardHat = "hardhat"
	PPEGloves  = "gloves"
	PPEEyePro  = "eyepro"
)

var catalog = []PPEItem{
	{ID: PPEBoots, Label: "Safety boots"},
	{ID: PPEHiVis, Label: "Hi-vis"},
	{ID: PPEHardHat, Label: "Hard hat"},
	{ID: PPEGloves, Label: "Gloves"},
	{ID: PPEEyePro, Label: "Eye protection"},
}

// Catalog returns a copy of the fixed PPE catalog in display order.
func Catalog() []PPEItem {
	out := make([]PPEItem, len(catalog))
	copy(out, catalog)
	return out
}


// NormalizePPE keeps catalog members only, without duplicates, in catalog
// order. Returns a non-nil slice.
func NormalizePPE(ids []string) []string {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]string, 0, len(want))
	for _, it := range catalog {
		if _, ok := want[it.ID]; ok {
			out = append(out, it.ID)
		}
	}
	return out
}

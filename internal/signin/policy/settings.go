package policy

import "slices"

// Settings is the site policy applied to every sign-in.
type Settings struct {
	SiteName         string   `json:"siteName"`
	AdminPIN         string   `json:"adminPin"`
	RequireInduction bool     `json:"requireInduction"`
	RequireRAMS      bool     `json:"requireRAMS"`
	RequirePPE       []string `json:"requirePPE"`
}

// Patch is a partial settings update. Nil fields are left unchanged. The
// persisted settings blob decodes into a Patch as well, so fields missing
// from an older blob fall back to defaults.
type Patch struct {
	SiteName         *string   `json:"siteName,omitempty"`
	AdminPIN         *string   `json:"adminPin,omitempty"`
	RequireInduction *bool     `json:"requireInduction,omitempty"`
	RequireRAMS      *bool     `json:"requireRAMS,omitempty"`
	RequirePPE       *[]string `json:"requirePPE,omitempty"`
}

const (
	DefaultSiteName = "Site"
	DefaultAdminPIN = "1234"
)

func Defaults() Settings {
	return Settings{
		SiteName:         DefaultSiteName,
		AdminPIN:         DefaultAdminPIN,
		RequireInduction: true,
		RequireRAMS:      true,
		RequirePPE:       []string{PPEBoots, PPEHiVis, PPEHardHat},
	}
}

// Merge applies p onto base field by field and returns the result. base is
// not modified.
func Merge(base Settings, p Patch) Settings {
	out := base
	out.RequirePPE = slices.Clone(base.RequirePPE)

	if p.SiteName != nil {
		out.SiteName = *p.SiteName
	}
	if p.AdminPIN != nil {
		out.AdminPIN = *p.AdminPIN
	}
	if p.RequireInduction != nil {
		out.RequireInduction = *p.RequireInduction
	}
	if p.RequireRAMS != nil {
		out.RequireRAMS = *p.RequireRAMS
	}
	if p.RequirePPE != nil {
		out.RequirePPE = NormalizePPE(*p.RequirePPE)
	}
	return out
}

// AsPatch returns a patch that sets every field of s.
func (s Settings) AsPatch() Patch {
	ppe := slices.Clone(s.RequirePPE)
	if ppe == nil {
		ppe = []string{}
	}
	return Patch{
		SiteName:         &s.SiteName,
		AdminPIN:         &s.AdminPIN,
		RequireInduction: &s.RequireInduction,
		RequireRAMS:      &s.RequireRAMS,
		RequirePPE:       &ppe,
	}
}

// CheckPIN compares pin against the admin PIN by exact string equality.
// This is a call-site gate for admin actions, not a security boundary.
func (s Settings) CheckPIN(pin string) bool {
	return pin == s.AdminPIN
}

// Public strips the admin PIN for display to non-admin callers.
func (s Settings) Public() Settings {
	out := s
	out.AdminPIN = ""
	out.RequirePPE = slices.Clone(s.RequirePPE)
	return out
}

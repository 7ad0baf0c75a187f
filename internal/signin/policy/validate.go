package policy

import (
	"strings"

	"github.com/BikerAndy/site-signin/internal/signin/types"
)

// Reason identifies why a sign-in or sign-out attempt was rejected.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInvalidDirection Reason = "invalid_direction"
	ReasonNameRequired     Reason = "name_required"
	ReasonCompanyRequired  Reason = "company_required"
	ReasonInduction        Reason = "induction_required"
	ReasonRAMS             Reason = "rams_required"
	ReasonPPEMissing       Reason = "ppe_missing"
	ReasonSiteRules        Reason = "site_rules_required"
)

// Message is the operator-facing text for a rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidDirection:
		return "Direction must be IN or OUT."
	case ReasonNameRequired:
		return "Please enter your name."
	case ReasonCompanyRequired:
		return "Please enter your company."
	case ReasonInduction:
		return "Site induction must be confirmed before signing in."
	case ReasonRAMS:
		return "RAMS must be acknowledged before signing in."
	case ReasonPPEMissing:
		return "Required PPE must be worn before signing in."
	case ReasonSiteRules:
		return "Site rules must be acknowledged before signing in."
	}
	return ""
}

type Result struct {
	OK         bool
	Reason     Reason
	MissingPPE []string
}

func reject(r Reason) Result { return Result{Reason: r} }

// Validate checks a candidate event against settings. The first failing rule
// wins. Sign-outs are checked for identity fields only.
func Validate(s Settings, dir types.Direction, w types.WorkerProfile, d types.Declarations) Result {
	if !dir.Valid() {
		return reject(ReasonInvalidDirection)
	}
	if strings.TrimSpace(w.Name) == "" {
		return reject(ReasonNameRequired)
	}
	if strings.TrimSpace(w.Company) == "" {
		return reject(ReasonCompanyRequired)
	}
	if dir == types.DirectionOut {
		return Result{OK: true}
	}

	if s.RequireInduction && !d.InductionConfirmed {
		return reject(ReasonInduction)
	}
	if s.RequireRAMS && !d.RAMSConfirmed {
		return reject(ReasonRAMS)
	}

	worn := make(map[string]struct{}, len(d.PPEWorn))
	for _, id := range d.PPEWorn {
		worn[id] = struct{}{}
	}
	var missing []string
	for _, id := range s.RequirePPE {
		if _, ok := worn[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Result{Reason: ReasonPPEMissing, MissingPPE: missing}
	}

	if !d.SiteRulesAck {
		return reject(ReasonSiteRules)
	}
	return Result{OK: true}
}

package molecule

// Lipinski rule-of-five limits.
const (
	LipinskiMaxWeight    = 500.0
	LipinskiMaxLogP      = 5.0
	LipinskiMaxDonors    = 5
	LipinskiMaxAcceptors = 10

	// LipinskiMinPassing is the number of satisfied criteria for a molecule
	// to be considered drug-like.
	LipinskiMinPassing = 3
)

// Assessment labels.
const (
	LabelDrugLike    = "Drug-like Properties"
	LabelNonDrugLike = "Non-drug-like Properties"
	LabelLipophilic  = "Lipophilic"
	LabelHydrophilic = "Hydrophilic"
	LabelHighPSA     = "High PSA"
	LabelLowPSA      = "Low PSA"
	LabelFlexible    = "Flexible"
	LabelRigid       = "Rigid"
	LabelHeavy       = "Heavy"
	LabelLight       = "Light"
)

// LipinskiCriterion is one rule-of-five check.
type LipinskiCriterion struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Passed bool    `json:"passed"`
}

// Assessment summarises drug-likeness and coarse property labels.
type Assessment struct {
	DrugLike      bool                `json:"drugLike"`
	Label         string              `json:"label"`
	PassedRules   int                 `json:"passedRules"`
	Criteria      []LipinskiCriterion `json:"criteria"`
	Lipophilicity string              `json:"lipophilicity"`
	Polarity      string              `json:"polarity"`
	Flexibility   string              `json:"flexibility"`
	Size          string              `json:"size"`
}

// Assess evaluates the rule of five and property labels. Zero values stand in
// for properties that are not available.
func Assess(weight float64, d Descriptors) Assessment {
	criteria := []LipinskiCriterion{
		{Name: "molecularWeight", Value: weight, Limit: LipinskiMaxWeight, Passed: weight <= LipinskiMaxWeight},
		{Name: "logP", Value: d.LogP, Limit: LipinskiMaxLogP, Passed: d.LogP <= LipinskiMaxLogP},
		{Name: "hBondDonors", Value: float64(d.HBondDonors), Limit: LipinskiMaxDonors, Passed: d.HBondDonors <= LipinskiMaxDonors},
		{Name: "hBondAcceptors", Value: float64(d.HBondAcceptors), Limit: LipinskiMaxAcceptors, Passed: d.HBondAcceptors <= LipinskiMaxAcceptors},
	}
	passed := 0
	for _, c := range criteria {
		if c.Passed {
			passed++
		}
	}

	a := Assessment{
		DrugLike:      passed >= LipinskiMinPassing,
		PassedRules:   passed,
		Criteria:      criteria,
		Lipophilicity: pick(d.LogP > 0, LabelLipophilic, LabelHydrophilic),
		Polarity:      pick(d.TPSA > 140, LabelHighPSA, LabelLowPSA),
		Flexibility:   pick(d.RotatableBonds > 5, LabelFlexible, LabelRigid),
		Size:          pick(weight > 500, LabelHeavy, LabelLight),
	}
	a.Label = pick(a.DrugLike, LabelDrugLike, LabelNonDrugLike)
	return a
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

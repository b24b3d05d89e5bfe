package workflows

// Template is the fixed roster for a workflow kind.
type Template struct {
	Kind    Kind    `json:"kind"`
	Label   string  `json:"label"`
	Signers []Party `json:"signers"`
}

var templates = []Template{
	{
		Kind:  KindProject,
		Label: "Project Documents",
		Signers: []Party{
			{Name: "Alaa Otaili", Role: "Surveyor"},
			{Name: "Hossam Sayma", Role: "Technical Office"},
			{Name: "Eng. Mohamed Salah", Role: "Project Manager"},
			{Name: "Eng. Mohamed Al-Harbi", Role: "Chief Operating Officer"},
		},
	},
	{
		Kind:  KindContract,
		Label: "Contracts",
		Signers: []Party{
			{Name: "Eng. Abdelsalam Sabry", Role: "Contracts Management"},
			{Name: "Eng. Mohamed Salah", Role: "Legal Affairs"},
			{Name: "Eng. Ahmed Emad", Role: "Chief Executive Officer"},
		},
	},
	{
		Kind:  KindPurchase,
		Label: "Purchases",
		Signers: []Party{
			{Name: "Alaa Otaili", Role: "Purchasing Representative"},
			{Name: "Hossam Sayma", Role: "Receiver"},
			{Name: "Eng. Mohamed Salah", Role: "Warehouse"},
		},
	},
	{
		Kind:    KindOther,
		Label:   "Other",
		Signers: []Party{},
	},
}

// Templates returns a copy of every roster template.
func Templates() []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		out[i] = Template{
			Kind:    t.Kind,
			Label:   t.Label,
			Signers: append([]Party{}, t.Signers...),
		}
	}
	return out
}

// TemplateFor returns the roster template for kind.
func TemplateFor(kind Kind) (Template, bool) {
	for _, t := range Templates() {
		if t.Kind == kind {
			return t, true
		}
	}
	return Template{}, false
}

// ArtifactPolicy records which kinds require a signature artifact on
// sign and approve decisions.
type ArtifactPolicy map[Kind]bool

// NewArtifactPolicy builds a policy from a list of kind names.
func NewArtifactPolicy(kinds []string) ArtifactPolicy {
	p := make(ArtifactPolicy, len(kinds))
	for _, k := range kinds {
		p[Kind(k)] = true
	}
	return p
}

// Requires reports whether kind needs an artifact.
func (p ArtifactPolicy) Requires(kind Kind) bool {
	return p[kind]
}

func rosterFrom(parties []Party) []Signer {
	roster := make([]Signer, len(parties))
	for i, p := range parties {
		roster[i] = Signer{
			Order:  i,
			Name:   p.Name,
			Role:   p.Role,
			Status: SignerPending,
		}
	}
	return roster
}

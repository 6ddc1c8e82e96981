package domain

type BusinessInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Values string `json:"values"`
}

// AutomationSettings is the process-wide automation configuration. The
// coordinator owns the live copy; callers update it through a SettingsPatch
// and changes take effect on the next cycle, never retroactively.
type AutomationSettings struct {
	AutoRespond         bool         `json:"autoRespond"`
	Tone                string       `json:"tone"`
	Language            string       `json:"language"`
	ResponseTemplate    string       `json:"responseTemplate"`
	RespondToFourStar   bool         `json:"respondToFourStar"`
	RespondToLowRatings bool         `json:"respondToLowRatings"`
	Business            BusinessInfo `json:"businessInfo"`
}

func DefaultSettings() AutomationSettings {
	return AutomationSettings{
		AutoRespond:      false,
		Tone:             "professional",
		Language:         "english",
		ResponseTemplate: "personalized",
		Business: BusinessInfo{
			Name:   "Your Business",
			Type:   "Business",
			Values: "Customer satisfaction and quality service",
		},
	}
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	AutoRespond         *bool         `json:"autoRespond,omitempty"`
	Tone                *string       `json:"tone,omitempty"`
	Language            *string       `json:"language,omitempty"`
	ResponseTemplate    *string       `json:"responseTemplate,omitempty"`
	RespondToFourStar   *bool         `json:"respondToFourStar,omitempty"`
	RespondToLowRatings *bool         `json:"respondToLowRatings,omitempty"`
	Business            *BusinessInfo `json:"businessInfo,omitempty"`
}

// Apply merges p over s and returns the result. Applying the same patch twice
// yields the same settings.
func (s AutomationSettings) Apply(p SettingsPatch) AutomationSettings {
	if p.AutoRespond != nil {
		s.AutoRespond = *p.AutoRespond
	}
	if p.Tone != nil {
		s.Tone = *p.Tone
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.ResponseTemplate != nil {
		s.ResponseTemplate = *p.ResponseTemplate
	}
	if p.RespondToFourStar != nil {
		s.RespondToFourStar = *p.RespondToFourStar
	}
	if p.RespondToLowRatings != nil {
		s.RespondToLowRatings = *p.RespondToLowRatings
	}
	if p.Business != nil {
		s.Business = *p.Business
	}
	return s
}

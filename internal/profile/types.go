package profile

// #region profile
// Profile is the raw onboarding questionnaire. Levels are 1-10; 0 means unset.
type Profile struct {
	Name          string `yaml:"name" json:"name"`
	SleepSchedule string `yaml:"sleep_schedule" json:"sleep_schedule"`
	ClassSchedule string `yaml:"class_schedule" json:"class_schedule"`
	WorkoutTimes  string `yaml:"workout_times" json:"workout_times"`
	Goal          string `yaml:"goal" json:"goal"`
	StressLevel   int    `yaml:"stress_level" json:"stress_level"`
	EnergyLevel   int    `yaml:"energy_level" json:"energy_level"`
	Mood          string `yaml:"mood" json:"mood"`
	SleepQuality  string `yaml:"sleep_quality" json:"sleep_quality"`
	Extra         string `yaml:"extra" json:"extra"`
	Budget        string `yaml:"budget" json:"budget"`
	CookingAccess string `yaml:"cooking_access" json:"cooking_access"`
	DietType      string `yaml:"diet_type" json:"diet_type"`
	Allergies     string `yaml:"allergies" json:"allergies"`
}
// #endregion profile

// #region state
// State is the structured reading of a profile.
type State struct {
	SleepHours    float64  `json:"sleep_hours,omitempty"` // 0 when the schedule could not be parsed
	StressLevel   int      `json:"stress_level"`
	EnergyLevel   int      `json:"energy_level"`
	ActivityLevel string   `json:"activity_level"`
	MentalState   []string `json:"mental_state"`
	Goals         []string `json:"goals"`
	DietType      string   `json:"diet_type"`
	Flags         []string `json:"flags"`
}

// HasTag reports whether the state carries a mental-state tag.
func (s State) HasTag(tag string) bool {
	for _, t := range s.MentalState {
		if t == tag {
			return true
		}
	}
	return false
}
// #endregion state

// Mental-state tags.
const (
	TagHighStress     = "high_stress"
	TagBurnoutRisk    = "burnout_risk"
	TagEnergyCrisis   = "energy_crisis"
	TagLowMood        = "low_mood"
	TagSleepDeprived  = "sleep_deprived"
	TagAnxiety        = "anxiety"
	TagDepressionRisk = "depression_risk"
	TagLowFocus       = "low_focus"
	TagFatigue        = "fatigue"
	TagCrashRisk      = "crash_risk"
)

// Activity levels.
const (
	ActivitySedentary = "sedentary"
	ActivityLight     = "light"
	ActivityModerate  = "moderate"
	ActivityActive    = "active"
)

// DefaultLevel replaces an unset or out-of-range stress or energy level.
const DefaultLevel = 5

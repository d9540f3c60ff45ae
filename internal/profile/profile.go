// Package profile reads an onboarding questionnaire into a structured state
// and maps that state onto protocol severities and nutrient targets.
package profile

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/campusfuel/healthos-engine/internal/catalog"
)

// #region analyze

// Analyze turns a raw profile into a State. Goals are normalized through the
// catalog's aliases; a blank goal reads as "general health".
func Analyze(p Profile, cat *catalog.Catalog) State {
	if cat == nil {
		cat = catalog.Default()
	}
	goal := strings.TrimSpace(p.Goal)
	if goal == "" {
		goal = "general health"
	}
	s := State{
		SleepHours:    ParseSleepHours(p.SleepSchedule),
		StressLevel:   level(p.StressLevel),
		EnergyLevel:   level(p.EnergyLevel),
		ActivityLevel: ActivityLevel(p.WorkoutTimes),
		Goals:         []string{cat.NormalizeGoal(goal)},
		DietType:      strings.ToLower(strings.TrimSpace(p.DietType)),
	}
	if s.DietType == "" {
		s.DietType = "omnivore"
	}
	s.MentalState = mentalState(p, s.StressLevel, s.EnergyLevel)
	s.Flags = flags(s)
	return s
}

func level(v int) int {
	if v < 1 || v > 10 {
		return DefaultLevel
	}
	return v
}

// #endregion analyze

// #region sleep

var clockRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

// ParseSleepHours reads the first two clock times in a schedule such as
// "11pm-7am" or "sleep at 1:30am, wake up 9am" as bedtime and wake time.
// It returns 0 when the schedule cannot be read.
func ParseSleepHours(schedule string) float64 {
	m := clockRe.FindAllStringSubmatch(strings.ToLower(schedule), 2)
	if len(m) < 2 {
		return 0
	}
	bed, ok1 := clockHour(m[0])
	wake, ok2 := clockHour(m[1])
	if !ok1 || !ok2 {
		return 0
	}
	hours := wake - bed
	if bed > wake {
		hours = 24 - bed + wake
	}
	if hours <= 0 || hours > 23 {
		return 0
	}
	return math.Round(hours*10) / 10
}

func clockHour(m []string) (float64, bool) {
	h, _ := strconv.Atoi(m[1])
	mins := 0
	if m[2] != "" {
		mins, _ = strconv.Atoi(m[2])
	}
	if h < 1 || h > 12 || mins > 59 {
		return 0, false
	}
	switch {
	case m[3] == "pm" && h != 12:
		h += 12
	case m[3] == "am" && h == 12:
		h = 0
	}
	return float64(h) + float64(mins)/60, true
}

// #endregion sleep

// #region mental-state

var keywordTags = []struct {
	tag      string
	keywords []string
}{
	{TagAnxiety, []string{"anxiety", "anxious", "panic", "worried"}},
	{TagDepressionRisk, []string{"depress", "sad", "hopeless", "unmotivated"}},
	{TagLowFocus, []string{"focus", "concentrate", "brain fog", "distract"}},
}

func mentalState(p Profile, stress, energy int) []string {
	var tags []string
	mood := strings.ToLower(strings.TrimSpace(p.Mood))
	lowMood := mood == "low"

	if stress >= 8 {
		tags = append(tags, TagHighStress)
	}
	if stress >= 9 {
		tags = append(tags, TagBurnoutRisk)
	}
	if energy <= 3 {
		tags = append(tags, TagEnergyCrisis)
	}
	if lowMood {
		tags = append(tags, TagLowMood)
	}
	if strings.EqualFold(strings.TrimSpace(p.SleepQuality), "poor") {
		tags = append(tags, TagSleepDeprived)
	}

	extra := strings.ToLower(p.Extra)
	for _, kt := range keywordTags {
		for _, kw := range kt.keywords {
			if strings.Contains(extra, kw) {
				tags = append(tags, kt.tag)
				break
			}
		}
	}

	if energy <= 4 && lowMood {
		tags = append(tags, TagFatigue)
	}
	if energy <= 2 && stress >= 8 {
		tags = append(tags, TagCrashRisk)
	}
	return tags
}

// #endregion mental-state

// #region activity

var (
	activeRe   = regexp.MustCompile(`every ?day|daily|twice`)
	moderateRe = regexp.MustCompile(`\b(3|4|5|three|four|five)\b`)
)

// ActivityLevel buckets a free-text workout schedule.
func ActivityLevel(workouts string) string {
	w := strings.ToLower(strings.TrimSpace(workouts))
	switch {
	case w == "" || w == "none" || w == "no":
		return ActivitySedentary
	case activeRe.MatchString(w):
		return ActivityActive
	case moderateRe.MatchString(w):
		return ActivityModerate
	default:
		return ActivityLight
	}
}

// #endregion activity

// #region flags

// Flags raised by Analyze.
const (
	FlagSevereSleepDeficit = "SEVERE_SLEEP_DEFICIT"
	FlagBurnoutImminent    = "BURNOUT_IMMINENT"
	FlagCrashRisk          = "CRASH_RISK"
	FlagAnxiousAndDepleted = "ANXIOUS_AND_DEPLETED"
)

func flags(s State) []string {
	var out []string
	if s.SleepHours > 0 && s.SleepHours < 5 {
		out = append(out, FlagSevereSleepDeficit)
	}
	if s.StressLevel >= 9 {
		out = append(out, FlagBurnoutImminent)
	}
	if s.HasTag(TagCrashRisk) {
		out = append(out, FlagCrashRisk)
	}
	if s.HasTag(TagAnxiety) && s.HasTag(TagEnergyCrisis) {
		out = append(out, FlagAnxiousAndDepleted)
	}
	return out
}

// #endregion flags

// #region severity

type contribution struct {
	protocol string
	severity float64
}

var tagProtocols = map[string][]contribution{
	TagHighStress:     {{"stress_protocol", 0.85}, {"gut_protocol", 0.60}, {"b_complex_protocol", 0.70}},
	TagBurnoutRisk:    {{"stress_protocol", 1.00}, {"sleep_protocol", 0.90}, {"gut_protocol", 0.70}},
	TagEnergyCrisis:   {{"energy_protocol", 0.90}, {"b_complex_protocol", 0.75}, {"electrolyte_protocol", 0.65}},
	TagLowMood:        {{"mood_protocol", 0.80}, {"omega_protocol", 0.60}, {"gut_protocol", 0.55}},
	TagSleepDeprived:  {{"sleep_protocol", 0.85}, {"energy_protocol", 0.65}},
	TagAnxiety:        {{"stress_protocol", 0.90}, {"blood_sugar_protocol", 0.75}, {"gut_protocol", 0.65}},
	TagDepressionRisk: {{"mood_protocol", 0.90}, {"omega_protocol", 0.70}, {"vitamin_c_protocol", 0.55}},
	TagLowFocus:       {{"cognitive_protocol", 0.80}, {"blood_sugar_protocol", 0.70}, {"omega_protocol", 0.65}},
	TagFatigue:        {{"energy_protocol", 0.85}, {"b_complex_protocol", 0.70}},
	TagCrashRisk:      {{"sleep_protocol", 1.00}, {"energy_protocol", 1.00}, {"stress_protocol", 0.90}},
}

var goalProtocols = map[string][]contribution{
	"fat loss":       {{"fat_loss_protocol", 0.80}, {"blood_sugar_protocol", 0.70}, {"gut_protocol", 0.60}},
	"muscle gain":    {{"muscle_protocol", 0.80}, {"recovery_protocol", 0.75}, {"performance_protocol", 0.65}},
	"maintenance":    {{"gut_protocol", 0.65}, {"immune_protocol", 0.65}, {"heart_protocol", 0.60}},
	"general health": {{"immune_protocol", 0.70}, {"gut_protocol", 0.70}, {"anti_inflammatory_protocol", 0.65}},
}

var dietProtocols = map[string][]contribution{
	"vegan":      {{"b_complex_protocol", 0.85}, {"energy_protocol", 0.75}, {"zinc_protocol", 0.70}, {"bone_protocol", 0.65}},
	"vegetarian": {{"b_complex_protocol", 0.70}, {"energy_protocol", 0.65}},
}

// MapToProtocols returns the active protocol set for s: protocol id to a
// severity in (0, 1]. Where several sources name the same protocol the
// highest severity wins.
func MapToProtocols(s State) map[string]float64 {
	out := make(map[string]float64)
	add := func(cs ...contribution) {
		for _, c := range cs {
			if c.severity > out[c.protocol] {
				out[c.protocol] = c.severity
			}
		}
	}

	if h := s.SleepHours; h > 0 {
		switch {
		case h < 4:
			add(contribution{"sleep_protocol", 1.00})
		case h < 5:
			add(contribution{"sleep_protocol", 0.90})
		case h < 6:
			add(contribution{"sleep_protocol", 0.75})
		case h < 7:
			add(contribution{"sleep_protocol", 0.55})
		}
	}

	switch stress := level(s.StressLevel); {
	case stress >= 9:
		add(contribution{"stress_protocol", 1.00}, contribution{"gut_protocol", 0.70})
	case stress >= 7:
		add(contribution{"stress_protocol", 0.80}, contribution{"gut_protocol", 0.55})
	case stress >= 5:
		add(contribution{"stress_protocol", 0.50})
	}

	switch energy := level(s.EnergyLevel); {
	case energy <= 2:
		add(contribution{"energy_protocol", 1.00}, contribution{"b_complex_protocol", 0.75})
	case energy <= 4:
		add(contribution{"energy_protocol", 0.75}, contribution{"b_complex_protocol", 0.55})
	case energy <= 6:
		add(contribution{"energy_protocol", 0.40})
	}

	for _, tag := range s.MentalState {
		add(tagProtocols[tag]...)
	}

	goals := s.Goals
	if len(goals) == 0 {
		goals = []string{"general health"}
	}
	for _, g := range goals {
		cs, ok := goalProtocols[g]
		if !ok {
			cs = goalProtocols["general health"]
		}
		add(cs...)
	}

	add(dietProtocols[strings.ToLower(s.DietType)]...)

	for id, v := range out {
		out[id] = math.Round(v*100) / 100
	}
	return out
}

// #endregion severity

// #region nutrients

// Target is one daily nutrient target.
type Target struct {
	Nutrient string  `json:"nutrient"`
	Amount   float64 `json:"amount"`
}

// NutrientTargets scales each active protocol's catalog targets by its
// severity, floored at half strength, and keeps the largest target per
// nutrient. The result is sorted by nutrient key.
func NutrientTargets(active map[string]float64, cat *catalog.Catalog) []Target {
	if cat == nil {
		cat = catalog.Default()
	}
	best := make(map[string]float64)
	for id, sev := range active {
		for _, nt := range cat.NutrientTargets(id) {
			scaled := math.Round(nt.Amount*math.Max(0.5, sev)*10) / 10
			if scaled > best[nt.Nutrient] {
				best[nt.Nutrient] = scaled
			}
		}
	}
	out := make([]Target, 0, len(best))
	for n, v := range best {
		out = append(out, Target{Nutrient: n, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nutrient < out[j].Nutrient })
	return out
}

// #endregion nutrients

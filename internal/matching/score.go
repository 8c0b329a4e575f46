// Package matching scores compatibility between a viewer's search
// preferences and candidate profiles, and ranks suggestions. Scores are
// 0-100 and deterministic: the same inputs always produce the same
// breakdown.
package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/matchpoint/internal/repository"
)

// Component weights. They sum to 100 so the total reads as a percentage.
const (
	weightAge          = 15
	weightCountry      = 10
	weightCity         = 5
	weightEthnicity    = 10
	weightReligion     = 15
	weightEducation    = 5
	weightMarital      = 10
	weightHeight       = 5
	weightLifestyle    = 10
	weightVerification = 10
	weightMutual       = 5
)

// Factor is one scored compatibility component. Score is MaxScore on a full
// match, 0 on a miss, and in between for partial-credit factors.
type Factor struct {
	Match    bool    `json:"match"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Detail   string  `json:"detail"`
}

func factor(match bool, weight float64, hitDetail, missDetail string) Factor {
	f := Factor{Match: match, MaxScore: weight, Detail: missDetail}
	if match {
		f.Score = weight
		f.Detail = hitDetail
	}
	return f
}

// Breakdown is one compatibility score with its per-component parts. The
// component scores always sum to Total; Mutual reports whether the
// candidate's own preferences would accept the viewer back.
type Breakdown struct {
	Age            Factor  `json:"age"`
	Location       Factor  `json:"location"`
	Ethnicity      Factor  `json:"ethnicity"`
	Religion       Factor  `json:"religion"`
	Education      Factor  `json:"education"`
	MaritalStatus  Factor  `json:"marital_status"`
	Height         Factor  `json:"height"`
	Lifestyle      Factor  `json:"lifestyle"`
	Verification   Factor  `json:"verification"`
	MutualInterest Factor  `json:"mutual_interest"`
	Total          float64 `json:"total"`
	Mutual         bool    `json:"mutual"`
}

// Party bundles one user's records for scoring. Preference may be nil, which
// reads as "no preferences": every list check passes.
type Party struct {
	Profile    *repository.Profile
	User       *repository.User
	Preference *repository.SearchPreference
}

// Score rates how well the candidate fits the viewer's preferences. The
// relation is deliberately asymmetric: only the small mutual-interest
// component looks at the candidate's own preferences.
func Score(viewer, candidate Party, now time.Time) Breakdown {
	pref := viewer.Preference
	if pref == nil {
		pref = &repository.SearchPreference{MinAge: 18, MaxAge: 99}
	}

	var b Breakdown

	// Age counts only when verified by a document; self-declared birth
	// dates are not trusted for filtering.
	if age, ok := verifiedAge(candidate.Profile, now); ok {
		b.Age = factor(age >= pref.MinAge && age <= pref.MaxAge, weightAge,
			fmt.Sprintf("age %d within %d-%d", age, pref.MinAge, pref.MaxAge),
			fmt.Sprintf("age %d outside %d-%d", age, pref.MinAge, pref.MaxAge))
	} else {
		b.Age = factor(false, weightAge, "", "birth date not verified")
	}

	b.Location = locationFactor(pref, candidate.Profile)
	b.Ethnicity = factor(listMatch(pref.PreferredEthnicities, candidate.Profile.Ethnicity),
		weightEthnicity, "ethnicity compatible", "ethnicity not in preferences")
	b.Religion = factor(listMatch(pref.PreferredReligiousPractices, candidate.Profile.ReligiousPractice),
		weightReligion, "religious practice compatible", "religious practice not in preferences")
	b.Education = factor(listMatch(pref.PreferredEducationLevels, candidate.Profile.VerifiedEducationLevel),
		weightEducation, "education compatible", "education level not in preferences")
	b.MaritalStatus = factor(listMatch(pref.PreferredMaritalStatuses, candidate.Profile.VerifiedMaritalStatus),
		weightMarital, "marital status compatible", "marital status not in preferences")
	b.Height = heightFactor(pref, candidate.Profile.HeightCm)
	b.Lifestyle = lifestyleFactor(pref, candidate.Profile)
	b.Verification = factor(isVerified(candidate.User),
		weightVerification, "verified profile", "not verified")

	b.Mutual = accepts(candidate.Preference, viewer, now)
	b.MutualInterest = factor(b.Mutual, weightMutual, "mutual match potential", "not a mutual match")

	b.Total = b.Age.Score + b.Location.Score + b.Ethnicity.Score + b.Religion.Score +
		b.Education.Score + b.MaritalStatus.Score + b.Height.Score + b.Lifestyle.Score +
		b.Verification.Score + b.MutualInterest.Score
	return b
}

// locationFactor is one 15-point component split between country and city,
// so a city miss still credits a country match.
func locationFactor(pref *repository.SearchPreference, p *repository.Profile) Factor {
	countryOK := listMatch(pref.PreferredCountries, verifiedCountry(p))
	cityOK := listMatch(pref.PreferredCities, p.CurrentCity)

	f := Factor{Match: countryOK && cityOK, MaxScore: weightCountry + weightCity}
	if countryOK {
		f.Score += weightCountry
	}
	if cityOK {
		f.Score += weightCity
	}
	switch {
	case f.Match:
		f.Detail = "location compatible"
	case !countryOK && !cityOK:
		f.Detail = "country and city not in preferences"
	case !countryOK:
		f.Detail = "country not in preferences"
	default:
		f.Detail = "city not in preferences"
	}
	return f
}

// verifiedCountry prefers the passport nationality; the residence country
// fills in for users verified by a residence permit instead.
func verifiedCountry(p *repository.Profile) string {
	if p.VerifiedNationality != "" {
		return p.VerifiedNationality
	}
	return p.VerifiedResidenceCountry
}

// lifestyleFactor gives partial credit over the habits the viewer actually
// stated a preference about; with no lifestyle preferences set the full
// weight is granted.
func lifestyleFactor(pref *repository.SearchPreference, p *repository.Profile) Factor {
	habits := []struct {
		list  repository.StringList
		value string
	}{
		{pref.PreferredSmoking, p.Smoking},
		{pref.PreferredAlcohol, p.Alcohol},
		{pref.PreferredDiet, p.Diet},
	}

	considered, matched := 0, 0
	for _, h := range habits {
		if len(h.list) == 0 {
			continue
		}
		considered++
		if listMatch(h.list, h.value) {
			matched++
		}
	}
	if considered == 0 {
		return factor(true, weightLifestyle, "no lifestyle preferences set", "")
	}
	return Factor{
		Match:    matched == considered,
		Score:    float64(matched) / float64(considered) * weightLifestyle,
		MaxScore: weightLifestyle,
		Detail:   fmt.Sprintf("%d/%d lifestyle preferences match", matched, considered),
	}
}

// heightFactor fails only on an explicit bound violation; an unspecified
// candidate height is treated as compatible.
func heightFactor(pref *repository.SearchPreference, heightCm int) Factor {
	switch {
	case heightCm == 0:
		return factor(true, weightHeight, "height not specified", "")
	case pref.MinHeightCm > 0 && heightCm < pref.MinHeightCm:
		return factor(false, weightHeight, "",
			fmt.Sprintf("height %dcm below minimum %dcm", heightCm, pref.MinHeightCm))
	case pref.MaxHeightCm > 0 && heightCm > pref.MaxHeightCm:
		return factor(false, weightHeight, "",
			fmt.Sprintf("height %dcm above maximum %dcm", heightCm, pref.MaxHeightCm))
	default:
		return factor(true, weightHeight, "height compatible", "")
	}
}

// listMatch implements the preference-list rule: an empty list accepts any
// value, a non-empty list requires a present, listed value. Matching ignores
// case so "Uzbekistan" and "uzbekistan" agree.
func listMatch(list repository.StringList, value string) bool {
	if len(list) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// accepts is the cheap reverse check: would the candidate's preferences
// admit the viewer on age and country? nil preferences admit everyone, and
// an unverified viewer age is skipped rather than disqualifying.
func accepts(pref *repository.SearchPreference, viewer Party, now time.Time) bool {
	if pref == nil {
		return true
	}
	if age, ok := verifiedAge(viewer.Profile, now); ok && (age < pref.MinAge || age > pref.MaxAge) {
		return false
	}
	if !listMatch(pref.PreferredCountries, verifiedCountry(viewer.Profile)) {
		return false
	}
	if pref.MustBeVerified && !isVerified(viewer.User) {
		return false
	}
	return true
}

func verifiedAge(p *repository.Profile, now time.Time) (int, bool) {
	if p == nil || p.VerifiedBirthDate == nil {
		return 0, false
	}
	birth := *p.VerifiedBirthDate
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

func isVerified(u *repository.User) bool {
	return u != nil && u.VerificationStatus == "verified"
}
